package billing

import (
	"fmt"
	"time"

	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/money"
)

type CoverageItemInput struct {
	Code     string
	Category string
	Total    float64
}

type CoverageItemResult struct {
	Code               string
	Category           string
	Total              float64
	EffectivePrice     float64
	CoveragePercentage float64
	CompanyShare       float64
	PatientShare       float64
	ApprovalStatus     models.ApprovalItemStatus
	ApprovalID         string
}

type CoverageInput struct {
	Items   []CoverageItemInput
	Company *models.Company
	// ConventionCoverage is the patient-level snapshot override; it sits
	// between the category override and the payer default.
	ConventionCoverage *float64
	Approvals          []models.Approval
	// ReferenceRate converts ledger prices into the reference currency used
	// by autoApproveUnderAmount thresholds. Zero means 1:1.
	ReferenceRate float64
	// SpentByCategory and SpentTotal pre-load company share already committed
	// on the invoice outside this pass (a partial rescan), so category and
	// per-visit caps account for it.
	SpentByCategory map[string]float64
	SpentTotal      float64
	Now             time.Time
}

type CoverageResult struct {
	CanApply          bool
	ContractIssues    []string
	Items             []CoverageItemResult
	TotalCompanyShare float64
	TotalPatientShare float64
	Warnings          []string
}

// ComputeCoverage splits every item between company and patient following the
// payer's convention rules. It is a pure function: approvals are consumed
// only inside the pass (remaining quantity is tracked locally), persistence
// belongs to the caller.
//
// The discount-before-coverage order is canonical here: a configured payer
// discount reduces the base price first, then the coverage rate applies to
// the reduced base.
func ComputeCoverage(in CoverageInput) CoverageResult {
	result := CoverageResult{}

	if issues := in.Company.ContractIssues(in.Now); len(issues) > 0 {
		result.ContractIssues = issues
		return result
	}
	result.CanApply = true

	refRate := in.ReferenceRate
	if refRate <= 0 {
		refRate = 1
	}

	// Approval quantity consumed within this pass, so the same approval is
	// not matched twice beyond its remaining quota.
	usedInPass := make(map[string]int)
	categorySpent := make(map[string]float64)
	for category, spent := range in.SpentByCategory {
		categorySpent[category] = spent
	}

	for _, item := range in.Items {
		itemResult := CoverageItemResult{
			Code:           item.Code,
			Category:       item.Category,
			Total:          item.Total,
			EffectivePrice: item.Total,
			ApprovalStatus: models.ApprovalItemNotRequired,
		}
		setting := in.Company.CategorySetting(item.Category)

		if setting != nil && setting.NotCovered {
			itemResult.PatientShare = item.Total
			result.Items = append(result.Items, itemResult)
			result.TotalPatientShare += item.Total
			continue
		}

		approvalRequired := false
		override := in.Company.ActOverride(item.Code)
		if override != nil {
			approvalRequired = override.RequiresApproval
		} else if setting != nil {
			approvalRequired = setting.RequiresApproval
		}

		if approvalRequired {
			threshold := in.Company.AutoApproveUnderAmount
			if setting != nil && setting.AutoApproveUnderAmount != nil {
				threshold = setting.AutoApproveUnderAmount
			}
			if threshold != nil && item.Total*refRate < *threshold {
				approvalRequired = false
			}
		}

		approvalSatisfied := false
		if approvalRequired {
			for i := range in.Approvals {
				approval := &in.Approvals[i]
				if approval.ActCode != item.Code || !approval.IsUsable(in.Now) {
					continue
				}
				if approval.QuantityApproved > 0 &&
					approval.UsedCount+usedInPass[approval.ID]+1 > approval.QuantityApproved {
					continue
				}
				usedInPass[approval.ID]++
				itemResult.ApprovalStatus = models.ApprovalItemApproved
				itemResult.ApprovalID = approval.ID
				approvalSatisfied = true
				break
			}
			if !approvalSatisfied {
				itemResult.ApprovalStatus = models.ApprovalItemMissing
				itemResult.CoveragePercentage = 0
				itemResult.PatientShare = item.Total
				result.Items = append(result.Items, itemResult)
				result.TotalPatientShare += item.Total
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("no valid approval for act %s: billed at 0%% coverage", item.Code))
				continue
			}
		}

		coverage := in.Company.DefaultCoverage
		if in.ConventionCoverage != nil {
			coverage = *in.ConventionCoverage
		}
		if setting != nil && setting.CoveragePercentage != nil {
			coverage = *setting.CoveragePercentage
		}
		if override != nil && override.CoveragePercentage != nil {
			coverage = *override.CoveragePercentage
		}

		discount := in.Company.GlobalDiscountPercent
		if setting != nil && setting.DiscountPercent > 0 {
			discount = setting.DiscountPercent
		}
		effectivePrice := item.Total
		if discount > 0 {
			effectivePrice = money.RoundCurrency(item.Total * (1 - discount/100))
		}
		itemResult.EffectivePrice = effectivePrice
		itemResult.CoveragePercentage = coverage

		companyShare := money.RoundCurrency(effectivePrice * coverage / 100)
		if setting != nil && setting.MaxAmount != nil && companyShare > *setting.MaxAmount {
			companyShare = *setting.MaxAmount
		}

		if setting != nil && setting.MaxPerCategory != nil {
			remaining := *setting.MaxPerCategory - categorySpent[item.Category]
			if remaining < 0 {
				remaining = 0
			}
			if companyShare > remaining {
				companyShare = remaining
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("category %s budget cap reached: company share clamped for act %s", item.Category, item.Code))
			}
		}
		categorySpent[item.Category] += companyShare

		itemResult.CompanyShare = companyShare
		itemResult.PatientShare = effectivePrice - companyShare
		result.Items = append(result.Items, itemResult)
		result.TotalCompanyShare += companyShare
		result.TotalPatientShare += itemResult.PatientShare
	}

	// maxPerVisit is the last adjustment: excess shifts to the patient, item
	// by item from the end of the invoice.
	if in.Company.MaxPerVisit != nil && in.SpentTotal+result.TotalCompanyShare > *in.Company.MaxPerVisit {
		excess := in.SpentTotal + result.TotalCompanyShare - *in.Company.MaxPerVisit
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("per-visit company cap exceeded by %.0f: excess shifted to patient", excess))
		for i := len(result.Items) - 1; i >= 0 && excess > 0; i-- {
			item := &result.Items[i]
			shift := item.CompanyShare
			if shift > excess {
				shift = excess
			}
			item.CompanyShare -= shift
			item.PatientShare += shift
			excess -= shift
		}
		result.TotalCompanyShare = 0
		result.TotalPatientShare = 0
		for _, item := range result.Items {
			result.TotalCompanyShare += item.CompanyShare
			result.TotalPatientShare += item.PatientShare
		}
	}

	return result
}
