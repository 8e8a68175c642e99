package models

import "time"

// ConventionSnapshot is the patient-level convention captured at registration.
// CoveragePercentage overrides the payer default when set.
type ConventionSnapshot struct {
	CompanyID          string   `bson:"companyId" json:"companyId"`
	CoveragePercentage *float64 `bson:"coveragePercentage,omitempty" json:"coveragePercentage,omitempty"`
	MemberNumber       string   `bson:"memberNumber,omitempty" json:"memberNumber,omitempty"`
}

// Patient is consumed read-only by billing: identity plus the convention
// snapshot. Registration lives elsewhere.
type Patient struct {
	ID         string              `bson:"_id,omitempty" json:"id"`
	FirstName  string              `bson:"firstName" json:"firstName"`
	LastName   string              `bson:"lastName" json:"lastName"`
	Convention *ConventionSnapshot `bson:"convention,omitempty" json:"convention,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}
