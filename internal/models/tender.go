package models

import "time"

type TenderStatus string

const (
	TenderDraft       TenderStatus = "DRAFT"
	TenderPublished   TenderStatus = "PUBLISHED"
	TenderUnderReview TenderStatus = "UNDER_REVIEW"
	TenderAwarded     TenderStatus = "AWARDED"
	TenderCancelled   TenderStatus = "CANCELLED"
	TenderCompleted   TenderStatus = "COMPLETED"
)

func ValidTenderStatus(t TenderStatus) bool {
	switch t {
	case TenderDraft, TenderPublished, TenderUnderReview, TenderAwarded, TenderCancelled, TenderCompleted:
		return true
	default:
		return false
	}
}

// TenderOpen reports whether bids on the tender can still be evaluated or awarded.
func TenderOpen(t TenderStatus) bool {
	return t == TenderPublished || t == TenderUnderReview
}

type Tender struct {
	Id          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Budget      float64      `json:"budget"`
	Deadline    time.Time    `json:"deadline"`
	Status      TenderStatus `json:"status"`
	CreatedById string       `json:"createdById"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	CreatedBy *UserSummary     `json:"createdBy,omitempty"`
	BidCount  int              `json:"bidCount"`
	Documents []TenderDocument `json:"documents,omitempty"`
	Bids      []Bid            `json:"bids,omitempty"`
}

type TenderDocument struct {
	Id            string    `json:"id"`
	TenderId      string    `json:"tenderId"`
	FileName      string    `json:"fileName"`
	FilePath      string    `json:"filePath"`
	SignatureHash string    `json:"signatureHash"`
	UploadedById  string    `json:"uploadedById"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TenderSummary is the slice of a tender embedded in bid listings.
type TenderSummary struct {
	Id       string       `json:"id"`
	Title    string       `json:"title"`
	Status   TenderStatus `json:"status"`
	Deadline time.Time    `json:"deadline"`
}

// TenderScope is the visibility predicate a role imposes on tender listings.
// Zero value means unrestricted.
type TenderScope struct {
	Statuses        []TenderStatus
	CreatedBy       string
	PendingReviewer string
}

type TenderFilter struct {
	Id       string
	Scope    TenderScope
	Statuses []TenderStatus
	Search   string
	Limit    int
	Offset   int
}

type TenderPage struct {
	Tenders    []Tender `json:"tenders"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
}
