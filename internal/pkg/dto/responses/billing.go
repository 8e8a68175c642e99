package responses

import "medflow-service/internal/app/models"

type CoverageItemResponse struct {
	Code               string  `json:"code"`
	Category           string  `json:"category"`
	Total              float64 `json:"total"`
	EffectivePrice     float64 `json:"effectivePrice"`
	CoveragePercentage float64 `json:"coveragePercentage"`
	CompanyShare       float64 `json:"companyShare"`
	PatientShare       float64 `json:"patientShare"`
	ApprovalStatus     string  `json:"approvalStatus"`
	ApprovalID         string  `json:"approvalId,omitempty"`
	IsPackage          bool    `json:"isPackage"`
	Savings            float64 `json:"savings,omitempty"`
}

type PackageAppliedResponse struct {
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	ConsumedActs []string `json:"consumedActs"`
	Savings      float64  `json:"savings"`
}

type CoveragePreviewResponse struct {
	CanApply          bool                     `json:"canApply"`
	ContractIssues    []string                 `json:"contractIssues,omitempty"`
	Items             []CoverageItemResponse   `json:"items,omitempty"`
	TotalCompanyShare float64                  `json:"totalCompanyShare"`
	TotalPatientShare float64                  `json:"totalPatientShare"`
	Warnings          []string                 `json:"warnings,omitempty"`
	PackagesApplied   []PackageAppliedResponse `json:"packagesApplied,omitempty"`
	OriginalItems     []models.LineItem        `json:"originalItems,omitempty"`
}

type ApplyConventionResponse struct {
	CanApply        bool                     `json:"canApply"`
	ContractIssues  []string                 `json:"contractIssues,omitempty"`
	Invoice         *models.Invoice          `json:"invoice,omitempty"`
	Warnings        []string                 `json:"warnings,omitempty"`
	PackagesApplied []PackageAppliedResponse `json:"packagesApplied,omitempty"`
}
