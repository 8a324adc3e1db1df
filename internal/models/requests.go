package models

import "time"

type NewTender struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Budget      float64             `json:"budget"`
	Deadline    time.Time           `json:"deadline"`
	Documents   []NewTenderDocument `json:"documents"`
}

type NewTenderDocument struct {
	FileName      string `json:"fileName"`
	FilePath      string `json:"filePath"`
	SignatureHash string `json:"signatureHash"`
}

type NewBid struct {
	Amount      *float64         `json:"amount"`
	Description string           `json:"description"`
	Documents   []NewBidDocument `json:"documents"`
}

type NewBidDocument struct {
	FilePath      string `json:"filePath"`
	SignatureHash string `json:"signatureHash"`
}

type TenderQuery struct {
	Statuses []TenderStatus
	Search   string
	Page     int
	Limit    int
}

type UserQuery struct {
	Role   Role
	Status UserStatus
	Page   int
	Limit  int
}

type Registration struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	OrganizationId string `json:"organizationId"`
	Role           Role   `json:"role"`
}

type AuthResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}
