package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"vendorse/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type ErrorResponse struct {
	Reason string `json:"reason"`
}

// Request schemas. Field formats are checked here, business rules in the service.

var (
	registerSchema = mustSchema(`{
		"type": "object",
		"required": ["email", "password", "name", "organizationId", "role"],
		"properties": {
			"email":          {"type": "string", "minLength": 3, "maxLength": 320},
			"password":       {"type": "string", "minLength": 8, "maxLength": 72},
			"name":           {"type": "string", "minLength": 1, "maxLength": 200},
			"organizationId": {"type": "string", "format": "uuid"},
			"role":           {"type": "string", "enum": ["ADMIN", "BUYER", "VENDOR", "REVIEWER"]}
		}
	}`)

	loginSchema = mustSchema(`{
		"type": "object",
		"required": ["email", "password"],
		"properties": {
			"email":    {"type": "string", "minLength": 1},
			"password": {"type": "string", "minLength": 1}
		}
	}`)

	organizationSchema = mustSchema(`{
		"type": "object",
		"required": ["name", "type"],
		"properties": {
			"name":    {"type": "string", "minLength": 1, "maxLength": 200},
			"type":    {"type": "string", "enum": ["BUSINESS", "GOVERNMENT", "NON_PROFIT"]},
			"address": {"type": "string", "maxLength": 500}
		}
	}`)

	updateUserSchema = mustSchema(`{
		"type": "object",
		"minProperties": 1,
		"additionalProperties": false,
		"properties": {
			"name":     {"type": "string", "minLength": 1, "maxLength": 200},
			"email":    {"type": "string", "minLength": 3, "maxLength": 320},
			"password": {"type": "string", "minLength": 8, "maxLength": 72},
			"role":     {"type": "string", "enum": ["ADMIN", "BUYER", "VENDOR", "REVIEWER"]},
			"status":   {"type": "string", "enum": ["ACTIVE", "INACTIVE", "SUSPENDED"]}
		}
	}`)

	newTenderSchema = mustSchema(`{
		"type": "object",
		"required": ["title", "deadline"],
		"properties": {
			"title":       {"type": "string", "minLength": 1, "maxLength": 200},
			"description": {"type": "string", "maxLength": 10000},
			"budget":      {"type": "number", "minimum": 0, "maximum": 999999999999.99},
			"deadline":    {"type": "string", "format": "date-time"},
			"documents": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["fileName", "filePath", "signatureHash"],
					"properties": {
						"fileName":      {"type": "string", "minLength": 1, "maxLength": 255},
						"filePath":      {"type": "string", "minLength": 1, "maxLength": 1024},
						"signatureHash": {"type": "string", "minLength": 1, "maxLength": 128}
					}
				}
			}
		}
	}`)

	newBidSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"amount":      {"type": ["number", "null"], "minimum": 0, "maximum": 999999999999.99},
			"description": {"type": "string", "maxLength": 10000},
			"documents": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["filePath", "signatureHash"],
					"properties": {
						"filePath":      {"type": "string", "minLength": 1, "maxLength": 1024},
						"signatureHash": {"type": "string", "minLength": 1, "maxLength": 128}
					}
				}
			}
		}
	}`)

	criterionSchema = `{
		"type": "object",
		"required": ["criteria", "score"],
		"properties": {
			"criteria":       {"type": "string", "minLength": 1, "maxLength": 100},
			"score":          {"type": "number", "minimum": 0, "maximum": 100},
			"notes":          {"type": ["string", "null"], "maxLength": 5000},
			"recommendation": {"type": ["string", "null"], "enum": ["ACCEPT", "REJECT", "REQUEST_CLARIFICATION", null]}
		}
	}`
	evaluationSchema = mustSchema(`{
		"oneOf": [
			` + criterionSchema + `,
			{"type": "array", "minItems": 1, "maxItems": 50, "items": ` + criterionSchema + `}
		]
	}`)

	uploadSchema = mustSchema(`{
		"type": "object",
		"required": ["fileName"],
		"properties": {
			"fileName":    {"type": "string", "minLength": 1, "maxLength": 255},
			"contentType": {"type": "string", "maxLength": 255},
			"size":        {"type": "integer", "minimum": 0}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("controller: invalid request schema: %s", err))
	}
	return schema
}

// validate checks data against schema and returns every violation in one error.
func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("malformed json: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("request validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parse[T any](schema *gojsonschema.Schema, data []byte) (T, error) {
	var req T

	err := validate(schema, data)
	if err != nil {
		return req, err
	}

	err = json.Unmarshal(data, &req)
	if err != nil {
		return req, fmt.Errorf("malformed json: %w", err)
	}
	return req, nil
}

// Auth requests

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func ParseRegisterReq(data []byte) (models.Registration, error) {
	return parse[models.Registration](registerSchema, data)
}

func ParseLoginReq(data []byte) (LoginReq, error) {
	return parse[LoginReq](loginSchema, data)
}

// Registry requests

type NewOrganizationReq struct {
	Name    string                  `json:"name"`
	Type    models.OrganizationType `json:"type"`
	Address string                  `json:"address"`
}

func ParseNewOrganizationReq(data []byte) (NewOrganizationReq, error) {
	return parse[NewOrganizationReq](organizationSchema, data)
}

type UpdateUserReq struct {
	Name     *string            `json:"name"`
	Email    *string            `json:"email"`
	Password *string            `json:"password"`
	Role     *models.Role       `json:"role"`
	Status   *models.UserStatus `json:"status"`
}

func ParseUpdateUserReq(data []byte) (models.UserUpdate, error) {
	req, err := parse[UpdateUserReq](updateUserSchema, data)
	if err != nil {
		return models.UserUpdate{}, err
	}
	return models.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Status:   req.Status,
	}, nil
}

// Lifecycle requests

func ParseNewTenderReq(data []byte) (models.NewTender, error) {
	return parse[models.NewTender](newTenderSchema, data)
}

func ParseNewBidReq(data []byte) (models.NewBid, error) {
	return parse[models.NewBid](newBidSchema, data)
}

// ParseEvaluationReq accepts a single criterion score or an array of them.
func ParseEvaluationReq(data []byte) ([]models.CriterionScore, error) {
	err := validate(evaluationSchema, data)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var scores []models.CriterionScore
		err = json.Unmarshal(trimmed, &scores)
		if err != nil {
			return nil, fmt.Errorf("malformed json: %w", err)
		}
		return scores, nil
	}

	var score models.CriterionScore
	err = json.Unmarshal(trimmed, &score)
	if err != nil {
		return nil, fmt.Errorf("malformed json: %w", err)
	}
	return []models.CriterionScore{score}, nil
}

// ParseWeights reads "cost:40,technical:30" into a weight per criterion.
func ParseWeights(raw string) (map[string]float64, error) {
	weights := map[string]float64{}
	if strings.TrimSpace(raw) == "" {
		return weights, nil
	}

	for _, part := range strings.Split(raw, ",") {
		criteria, value, ok := strings.Cut(part, ":")
		criteria = strings.TrimSpace(criteria)
		if !ok || criteria == "" {
			return nil, fmt.Errorf("invalid weight %q, expected criteria:weight", part)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("invalid weight for %q: %q", criteria, value)
		}
		weights[criteria] = w
	}
	return weights, nil
}

// File requests

type UploadURLReq struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func ParseUploadURLReq(data []byte) (UploadURLReq, error) {
	return parse[UploadURLReq](uploadSchema, data)
}

// Query parameters

func parseTenderStatuses(values []string) ([]models.TenderStatus, error) {
	var statuses []models.TenderStatus
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			st := models.TenderStatus(strings.ToUpper(strings.TrimSpace(s)))
			if st == "" {
				continue
			}
			if !models.ValidTenderStatus(st) {
				return nil, fmt.Errorf("invalid tender status supplied: %s", s)
			}
			statuses = append(statuses, st)
		}
	}
	return statuses, nil
}
