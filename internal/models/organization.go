package models

import "time"

type OrganizationType string

const (
	OrgBusiness   OrganizationType = "BUSINESS"
	OrgGovernment OrganizationType = "GOVERNMENT"
	OrgNonProfit  OrganizationType = "NON_PROFIT"
)

func ValidOrganizationType(t OrganizationType) bool {
	switch t {
	case OrgBusiness, OrgGovernment, OrgNonProfit:
		return true
	default:
		return false
	}
}

type Organization struct {
	Id        string           `json:"id"`
	Name      string           `json:"name"`
	Type      OrganizationType `json:"type"`
	Address   string           `json:"address"`
	Verified  bool             `json:"verified"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
