package models

import "time"

type BidStatus string

const (
	BidSubmitted   BidStatus = "SUBMITTED"
	BidUnderReview BidStatus = "UNDER_REVIEW"
	BidAccepted    BidStatus = "ACCEPTED"
	BidRejected    BidStatus = "REJECTED"
)

func ValidBidStatus(t BidStatus) bool {
	switch t {
	case BidSubmitted, BidUnderReview, BidAccepted, BidRejected:
		return true
	default:
		return false
	}
}

// BidReviewable reports whether reviewers may still score the bid.
func BidReviewable(t BidStatus) bool {
	return t == BidSubmitted || t == BidUnderReview
}

type Bid struct {
	Id             string    `json:"id"`
	TenderId       string    `json:"tenderId"`
	SubmittedById  string    `json:"submittedById"`
	OrganizationId string    `json:"organizationId"`
	Amount         *float64  `json:"amount,omitempty"`
	Description    string    `json:"description"`
	Status         BidStatus `json:"status"`
	SubmittedAt    time.Time `json:"submittedAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	SubmittedBy *UserSummary      `json:"submittedBy,omitempty"`
	Tender      *TenderSummary    `json:"tender,omitempty"`
	Documents   []BidDocument     `json:"documents,omitempty"`
	Evaluations []EvaluationScore `json:"evaluations,omitempty"`
	Score       *float64          `json:"score,omitempty"`
}

type BidDocument struct {
	Id            string    `json:"id"`
	BidId         string    `json:"bidId"`
	FilePath      string    `json:"filePath"`
	SignatureHash string    `json:"signatureHash"`
	CreatedAt     time.Time `json:"createdAt"`
}
