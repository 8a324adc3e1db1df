package models

import "time"

type Recommendation string

const (
	RecommendAccept        Recommendation = "ACCEPT"
	RecommendReject        Recommendation = "REJECT"
	RecommendClarification Recommendation = "REQUEST_CLARIFICATION"
)

func ValidRecommendation(t Recommendation) bool {
	switch t {
	case RecommendAccept, RecommendReject, RecommendClarification:
		return true
	default:
		return false
	}
}

// EvaluationScore is one reviewer's score of one bid against one criterion.
// (BidId, ReviewerId, Criteria) is unique.
type EvaluationScore struct {
	Id             string          `json:"id"`
	BidId          string          `json:"bidId"`
	ReviewerId     string          `json:"reviewerId"`
	Criteria       string          `json:"criteria"`
	Score          float64         `json:"score"`
	Notes          *string         `json:"notes,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	Reviewer *UserSummary `json:"reviewer,omitempty"`
}

// CriterionScore is a single criterion of an evaluation request.
type CriterionScore struct {
	Criteria       string          `json:"criteria"`
	Score          float64         `json:"score"`
	Notes          *string         `json:"notes,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// ScoreWeight is an input pair of the weighted aggregate. A nil Weight counts as 1.
type ScoreWeight struct {
	Score  float64
	Weight *float64
}

type BidScore struct {
	BidId     string             `json:"bidId"`
	Score     float64            `json:"score"`
	Criteria  map[string]float64 `json:"criteria"`
	Weights   map[string]float64 `json:"weights"`
	Evaluated int                `json:"evaluated"`
}
