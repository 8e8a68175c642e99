package models

import "time"

// CategorySetting carries the payer's rules for one service category.
// Pointer fields distinguish "not configured" from zero values.
type CategorySetting struct {
	Category               string   `bson:"category" json:"category"`
	CoveragePercentage     *float64 `bson:"coveragePercentage,omitempty" json:"coveragePercentage,omitempty"`
	RequiresApproval       bool     `bson:"requiresApproval" json:"requiresApproval"`
	NotCovered             bool     `bson:"notCovered" json:"notCovered"`
	MaxAmount              *float64 `bson:"maxAmount,omitempty" json:"maxAmount,omitempty"`
	MaxPerCategory         *float64 `bson:"maxPerCategory,omitempty" json:"maxPerCategory,omitempty"`
	AutoApproveUnderAmount *float64 `bson:"autoApproveUnderAmount,omitempty" json:"autoApproveUnderAmount,omitempty"`
	DiscountPercent        float64  `bson:"discountPercent,omitempty" json:"discountPercent,omitempty"`
}

// ActOverride pins approval requirement or coverage for a specific act code,
// taking precedence over the category setting.
type ActOverride struct {
	Code               string   `bson:"code" json:"code"`
	RequiresApproval   bool     `bson:"requiresApproval" json:"requiresApproval"`
	CoveragePercentage *float64 `bson:"coveragePercentage,omitempty" json:"coveragePercentage,omitempty"`
}

// PackageDeal bundles a fixed set of acts under a negotiated price.
type PackageDeal struct {
	Name     string   `bson:"name" json:"name"`
	ActCodes []string `bson:"actCodes" json:"actCodes"`
	Price    float64  `bson:"price" json:"price"`
	Active   bool     `bson:"active" json:"active"`
}

type Contract struct {
	Active    bool       `bson:"active" json:"active"`
	StartDate *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}

// Company is a third-party payer with a convention contract.
type Company struct {
	ID                     string            `bson:"_id,omitempty" json:"id"`
	Name                   string            `bson:"name" json:"name"`
	DefaultCoverage        float64           `bson:"defaultCoverage" json:"defaultCoverage"`
	CategorySettings       []CategorySetting `bson:"categorySettings,omitempty" json:"categorySettings,omitempty"`
	ActOverrides           []ActOverride     `bson:"actOverrides,omitempty" json:"actOverrides,omitempty"`
	Packages               []PackageDeal     `bson:"packages,omitempty" json:"packages,omitempty"`
	GlobalDiscountPercent  float64           `bson:"globalDiscountPercent,omitempty" json:"globalDiscountPercent,omitempty"`
	AutoApproveUnderAmount *float64          `bson:"autoApproveUnderAmount,omitempty" json:"autoApproveUnderAmount,omitempty"`
	MaxPerVisit            *float64          `bson:"maxPerVisit,omitempty" json:"maxPerVisit,omitempty"`
	Contract               Contract          `bson:"contract" json:"contract"`
	CreatedAt              time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt              time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// CategorySetting returns the setting for a category, nil when unconfigured.
func (c *Company) CategorySetting(category string) *CategorySetting {
	for i := range c.CategorySettings {
		if c.CategorySettings[i].Category == category {
			return &c.CategorySettings[i]
		}
	}
	return nil
}

// ActOverride returns the act-level override for a code, nil when absent.
func (c *Company) ActOverride(code string) *ActOverride {
	for i := range c.ActOverrides {
		if c.ActOverrides[i].Code == code {
			return &c.ActOverrides[i]
		}
	}
	return nil
}

// ContractIssues lists why the convention cannot be applied right now.
// An empty result means the contract is usable.
func (c *Company) ContractIssues(now time.Time) []string {
	var issues []string
	if !c.Contract.Active {
		issues = append(issues, "contract is not active")
	}
	if c.Contract.ExpiresAt != nil && c.Contract.ExpiresAt.Before(now) {
		issues = append(issues, "contract has expired")
	}
	if c.Contract.StartDate != nil && c.Contract.StartDate.After(now) {
		issues = append(issues, "contract has not started")
	}
	return issues
}
