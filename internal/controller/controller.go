package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vendorse/internal/auth"
	"vendorse/internal/files"
	"vendorse/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxBodySize = 1 << 20
	maxPage     = 1_000_000
)

type Service interface {
	Register(ctx context.Context, reg models.Registration) (models.AuthResult, error)
	Login(ctx context.Context, email, password string) (models.AuthResult, error)
	Authenticate(ctx context.Context, token string) (models.Actor, error)

	CreateOrganization(ctx context.Context, name string, orgType models.OrganizationType, address string) (models.Organization, error)
	GetOrganization(ctx context.Context, id string) (models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)

	GetUser(ctx context.Context, actor models.Actor, id string) (models.User, error)
	ListUsers(ctx context.Context, actor models.Actor, q models.UserQuery) (models.UserPage, error)
	UpdateUser(ctx context.Context, actor models.Actor, id string, upd models.UserUpdate) (models.User, error)

	CreateTender(ctx context.Context, actor models.Actor, in models.NewTender) (models.Tender, error)
	PublishTender(ctx context.Context, actor models.Actor, tenderId string) (models.Tender, error)
	AwardTender(ctx context.Context, actor models.Actor, tenderId, bidId string) (models.Tender, error)
	GetTender(ctx context.Context, actor models.Actor, tenderId string) (models.Tender, error)
	ListTenders(ctx context.Context, actor models.Actor, q models.TenderQuery) (models.TenderPage, error)

	SubmitBid(ctx context.Context, actor models.Actor, tenderId string, in models.NewBid) (models.Bid, error)
	GetUserBids(ctx context.Context, actor models.Actor) ([]models.Bid, error)
	EvaluateBid(ctx context.Context, actor models.Actor, bidId string, scores []models.CriterionScore) ([]models.EvaluationScore, error)
	BidScore(ctx context.Context, actor models.Actor, bidId string, weights map[string]float64) (models.BidScore, error)

	DashboardStats(ctx context.Context, actor models.Actor) (models.DashboardStats, error)
	ListNotifications(ctx context.Context, actor models.Actor, page, limit int) ([]models.Notification, error)
}

type FileService interface {
	UploadURL(ctx context.Context, userId, fileName, contentType string, size int64) (files.UploadURL, error)
	DownloadURL(ctx context.Context, key string) (files.DownloadURL, error)
}

type Controller struct {
	service Service
	files   FileService
	log     *zap.Logger
}

func NewController(service Service, files FileService, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{service: service, files: files, log: log.Named("controller")}
}

// GET /api/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

//// Auth

// Authenticate resolves the bearer token into an actor stored in the request
// context. Requests without a valid token stop here with 401.
func (c *Controller) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.errorResponse(w, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}

		actor, err := c.service.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			c.serviceErrorResponse(w, r, err)
			return
		}
		actor.IP = clientIP(r)

		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

// POST /api/auth/register
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseRegisterReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.service.Register(r.Context(), req)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusCreated, result)
}

// POST /api/auth/login
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseLoginReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, result)
}

// GET /api/auth/me
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	user, err := c.service.GetUser(r.Context(), actor, actor.Id)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, user)
}

//// Organizations

// POST /api/organizations
func (c *Controller) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseNewOrganizationReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	org, err := c.service.CreateOrganization(r.Context(), req.Name, req.Type, req.Address)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusCreated, org)
}

// GET /api/organizations
func (c *Controller) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := c.service.ListOrganizations(r.Context())
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, orgs)
}

// GET /api/organizations/{orgId}
func (c *Controller) GetOrganization(w http.ResponseWriter, r *http.Request) {
	orgId, ok := c.pathId(w, r, "orgId")
	if !ok {
		return
	}

	org, err := c.service.GetOrganization(r.Context(), orgId)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, org)
}

//// Users

// GET /api/users
func (c *Controller) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	page, limit, ok := c.pagination(w, query)
	if !ok {
		return
	}

	role := models.Role(strings.ToUpper(query.Get("role")))
	if role != "" && !models.ValidRole(role) {
		c.errorResponse(w, http.StatusBadRequest, "invalid role supplied: "+query.Get("role"))
		return
	}
	status := models.UserStatus(strings.ToUpper(query.Get("status")))
	if status != "" && !models.ValidUserStatus(status) {
		c.errorResponse(w, http.StatusBadRequest, "invalid status supplied: "+query.Get("status"))
		return
	}

	users, err := c.service.ListUsers(r.Context(), actor, models.UserQuery{Role: role, Status: status, Page: page, Limit: limit})
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, users)
}

// GET /api/users/{userId}
func (c *Controller) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	userId, ok := c.pathId(w, r, "userId")
	if !ok {
		return
	}

	user, err := c.service.GetUser(r.Context(), actor, userId)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, user)
}

// PUT /api/users/{userId}
func (c *Controller) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	userId, ok := c.pathId(w, r, "userId")
	if !ok {
		return
	}

	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	upd, err := ParseUpdateUserReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.service.UpdateUser(r.Context(), actor, userId, upd)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, user)
}

//// Tenders

// GET /api/tenders
func (c *Controller) ListTenders(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	page, limit, ok := c.pagination(w, query)
	if !ok {
		return
	}

	statuses, err := parseTenderStatuses(query["status"])
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tenders, err := c.service.ListTenders(r.Context(), actor, models.TenderQuery{
		Statuses: statuses,
		Search:   query.Get("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, tenders)
}

// POST /api/tenders
func (c *Controller) CreateTender(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseNewTenderReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tender, err := c.service.CreateTender(r.Context(), actor, req)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusCreated, tender)
}

// GET /api/tenders/{tenderId}
func (c *Controller) GetTender(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathId(w, r, "tenderId")
	if !ok {
		return
	}

	tender, err := c.service.GetTender(r.Context(), actor, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, tender)
}

// PUT /api/tenders/{tenderId}/publish
func (c *Controller) PublishTender(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathId(w, r, "tenderId")
	if !ok {
		return
	}

	tender, err := c.service.PublishTender(r.Context(), actor, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, tender)
}

// PUT /api/tenders/{tenderId}/award/{bidId}
func (c *Controller) AwardTender(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathId(w, r, "tenderId")
	if !ok {
		return
	}
	bidId, ok := c.pathId(w, r, "bidId")
	if !ok {
		return
	}

	tender, err := c.service.AwardTender(r.Context(), actor, tenderId, bidId)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, tender)
}

//// Bids

// POST /api/tenders/{tenderId}/bids
func (c *Controller) SubmitBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	tenderId, ok := c.pathId(w, r, "tenderId")
	if !ok {
		return
	}

	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseNewBidReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err := c.service.SubmitBid(r.Context(), actor, tenderId, req)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusCreated, bid)
}

// GET /api/bids/my
func (c *Controller) MyBids(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	bids, err := c.service.GetUserBids(r.Context(), actor)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, bids)
}

// POST /api/bids/{bidId}/evaluate
func (c *Controller) EvaluateBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	bidId, ok := c.pathId(w, r, "bidId")
	if !ok {
		return
	}

	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	scores, err := ParseEvaluationReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	evaluations, err := c.service.EvaluateBid(r.Context(), actor, bidId, scores)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, evaluations)
}

// GET /api/bids/{bidId}/score
func (c *Controller) BidScore(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	bidId, ok := c.pathId(w, r, "bidId")
	if !ok {
		return
	}

	weights, err := ParseWeights(r.URL.Query().Get("weights"))
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	score, err := c.service.BidScore(r.Context(), actor, bidId, weights)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, score)
}

//// Dashboard

// GET /api/dashboard/stats
func (c *Controller) DashboardStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	stats, err := c.service.DashboardStats(r.Context(), actor)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, stats)
}

// GET /api/notifications
func (c *Controller) Notifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	page, limit, ok := c.pagination(w, r.URL.Query())
	if !ok {
		return
	}

	notifications, err := c.service.ListNotifications(r.Context(), actor, page, limit)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, notifications)
}

//// Files

// POST /api/files/upload-url
func (c *Controller) UploadURL(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	if c.files == nil {
		c.errorResponse(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	data, err := c.readBody(w, r)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseUploadURLReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	upload, err := c.files.UploadURL(r.Context(), actor.Id, req.FileName, req.ContentType, req.Size)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, upload)
}

// GET /api/files/download-url
func (c *Controller) DownloadURL(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.actor(w, r); !ok {
		return
	}
	if c.files == nil {
		c.errorResponse(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		c.errorResponse(w, http.StatusBadRequest, "empty key supplied")
		return
	}

	download, err := c.files.DownloadURL(r.Context(), key)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, http.StatusOK, download)
}

//// Service

func (c *Controller) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		c.errorResponse(w, http.StatusUnauthorized, "authentication required")
	}
	return actor, ok
}

// pathId reads a UUID path parameter. Malformed ids cannot name an existing
// row, so they answer 404 without reaching the service.
func (c *Controller) pathId(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.errorResponse(w, http.StatusNotFound, fmt.Sprintf("%s %q does not exist", name, raw))
		return "", false
	}
	return id.String(), true
}

func (c *Controller) pagination(w http.ResponseWriter, query url.Values) (page, limit int, ok bool) {
	page, err := c.getQueryInt(query, "page")
	if err != nil || page < 0 || page > maxPage {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'page' query parameter: "+query.Get("page"))
		return 0, 0, false
	}

	limit, err = c.getQueryInt(query, "limit")
	if err != nil || limit < 0 {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return 0, 0, false
	}
	return page, limit, true
}

func (c *Controller) getQueryInt(query url.Values, key string) (int, error) {
	str := query.Get(key)
	if len(str) == 0 {
		return 0, nil
	}
	return strconv.Atoi(str)
}

func (c *Controller) errorResponse(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, err := json.Marshal(ErrorResponse{Reason: text})
	if err != nil {
		c.log.Error("could not marshal error response", zap.Error(err))
		return
	}

	_, err = w.Write(data)
	if err != nil {
		c.log.Debug("could not write error response", zap.Error(err))
	}
}

// serviceErrorResponse maps an error kind to its status. Errors of unknown
// kind are logged and answered with a generic 500.
func (c *Controller) serviceErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.errorResponse(w, http.StatusBadRequest, reason(err))
	case errors.Is(err, models.ErrUnauthenticated):
		c.errorResponse(w, http.StatusUnauthorized, models.ErrUnauthenticated.Error())
	case errors.Is(err, models.ErrForbidden):
		c.errorResponse(w, http.StatusForbidden, reason(err))
	case errors.Is(err, models.ErrNotFound):
		c.errorResponse(w, http.StatusNotFound, reason(err))
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrConflict):
		c.errorResponse(w, http.StatusConflict, reason(err))
	default:
		c.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		c.errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

// reason drops the "pkg.Type.Method: " prefixes so clients see the kind,
// the detail and the offending id.
func reason(err error) string {
	msg := err.Error()
	for {
		head, rest, ok := strings.Cut(msg, ": ")
		if !ok || !strings.Contains(head, ".") || strings.Contains(head, " ") {
			return msg
		}
		msg = rest
	}
}

func (c *Controller) marshalResponse(w http.ResponseWriter, status int, data any) {
	d, err := json.Marshal(data)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not marshal response data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(d)
	if err != nil {
		c.log.Debug("could not write response", zap.Error(err))
	}
}

func (c *Controller) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
}

// clientIP prefers the address set by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
