package models

import "time"

type NotificationType string

const (
	NotifyTenderPublished NotificationType = "TENDER_PUBLISHED"
	NotifyBidSubmitted    NotificationType = "BID_SUBMITTED"
	NotifyBidEvaluated    NotificationType = "BID_EVALUATED"
	NotifyTenderAwarded   NotificationType = "TENDER_AWARDED"
	NotifySystem          NotificationType = "SYSTEM_NOTIFICATION"
)

func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotifyTenderPublished, NotifyBidSubmitted, NotifyBidEvaluated, NotifyTenderAwarded, NotifySystem:
		return true
	default:
		return false
	}
}

type Notification struct {
	Id        string           `json:"id"`
	UserId    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Audit action and target names.
const (
	AuditTenderCreated   = "TENDER_CREATED"
	AuditTenderPublished = "TENDER_PUBLISHED"
	AuditTenderAwarded   = "TENDER_AWARDED"
	AuditBidSubmitted    = "BID_SUBMITTED"
	AuditBidEvaluated    = "BID_EVALUATED"

	TargetTender = "TENDER"
	TargetBid    = "BID"
)

// AuditLog rows are append-only.
type AuditLog struct {
	Id         string    `json:"id"`
	ActorId    string    `json:"actorId"`
	ActionType string    `json:"actionType"`
	TargetId   string    `json:"targetId"`
	TargetType string    `json:"targetType"`
	IPAddress  string    `json:"ipAddress"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DashboardStats struct {
	TotalTenders       int `json:"totalTenders"`
	ActiveTenders      int `json:"activeTenders"`
	SubmittedBids      int `json:"submittedBids"`
	PendingEvaluations int `json:"pendingEvaluations"`
	TotalUsers         int `json:"totalUsers,omitempty"`
}
