package billing

import (
	"testing"
	"time"

	"medflow-service/internal/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func activeCompany() *models.Company {
	return &models.Company{
		ID:              "comp-1",
		Name:            "Sonatrach",
		DefaultCoverage: 80,
		Contract:        models.Contract{Active: true},
	}
}

func TestComputeCoverageSplit(t *testing.T) {
	now := time.Now()

	t.Run("default coverage splits company and patient", func(t *testing.T) {
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "CONSULT", Category: "consultation", Total: 5000}},
			Company: activeCompany(),
			Now:     now,
		})
		require.True(t, result.CanApply)
		require.Len(t, result.Items, 1)
		assert.Equal(t, 4000.0, result.Items[0].CompanyShare)
		assert.Equal(t, 1000.0, result.Items[0].PatientShare)
		assert.Equal(t, 80.0, result.Items[0].CoveragePercentage)
		assert.Equal(t, models.ApprovalItemNotRequired, result.Items[0].ApprovalStatus)
	})

	t.Run("precedence act override over category over snapshot over default", func(t *testing.T) {
		company := activeCompany()
		company.CategorySettings = []models.CategorySetting{
			{Category: "imaging", CoveragePercentage: floatPtr(60)},
		}
		company.ActOverrides = []models.ActOverride{
			{Code: "IRM-CEREB", CoveragePercentage: floatPtr(90)},
		}
		result := ComputeCoverage(CoverageInput{
			Items: []CoverageItemInput{
				{Code: "IRM-CEREB", Category: "imaging", Total: 10000},
				{Code: "SCANNER", Category: "imaging", Total: 10000},
				{Code: "CONSULT", Category: "consultation", Total: 10000},
			},
			Company:            company,
			ConventionCoverage: floatPtr(70),
			Now:                now,
		})
		assert.Equal(t, 90.0, result.Items[0].CoveragePercentage, "act override wins")
		assert.Equal(t, 60.0, result.Items[1].CoveragePercentage, "category setting beats snapshot")
		assert.Equal(t, 70.0, result.Items[2].CoveragePercentage, "snapshot beats payer default")
	})

	t.Run("not covered category falls entirely on the patient", func(t *testing.T) {
		company := activeCompany()
		company.CategorySettings = []models.CategorySetting{
			{Category: "aesthetics", NotCovered: true},
		}
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "BOTOX", Category: "aesthetics", Total: 30000}},
			Company: company,
			Now:     now,
		})
		assert.Equal(t, 0.0, result.Items[0].CompanyShare)
		assert.Equal(t, 30000.0, result.Items[0].PatientShare)
		assert.Equal(t, 30000.0, result.TotalPatientShare)
	})

	t.Run("share sum always equals the effective price", func(t *testing.T) {
		company := activeCompany()
		company.DefaultCoverage = 33.33
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "LAB-NFS", Category: "lab", Total: 1700}},
			Company: company,
			Now:     now,
		})
		item := result.Items[0]
		assert.Equal(t, item.EffectivePrice, item.CompanyShare+item.PatientShare)
	})
}

func TestComputeCoverageContract(t *testing.T) {
	now := time.Now()

	t.Run("expired contract blocks application", func(t *testing.T) {
		company := activeCompany()
		expired := now.Add(-24 * time.Hour)
		company.Contract.ExpiresAt = &expired
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "CONSULT", Category: "consultation", Total: 5000}},
			Company: company,
			Now:     now,
		})
		assert.False(t, result.CanApply)
		assert.Contains(t, result.ContractIssues, "contract has expired")
		assert.Empty(t, result.Items)
	})

	t.Run("inactive and not-yet-started issues accumulate", func(t *testing.T) {
		company := activeCompany()
		company.Contract.Active = false
		future := now.Add(24 * time.Hour)
		company.Contract.StartDate = &future
		result := ComputeCoverage(CoverageInput{Company: company, Now: now})
		assert.False(t, result.CanApply)
		assert.Len(t, result.ContractIssues, 2)
	})
}

func TestComputeCoverageApprovals(t *testing.T) {
	now := time.Now()

	approvalCompany := func() *models.Company {
		company := activeCompany()
		company.CategorySettings = []models.CategorySetting{
			{Category: "surgery", RequiresApproval: true},
		}
		return company
	}

	t.Run("usable approval keeps coverage and records the id", func(t *testing.T) {
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "SURG-APPEND", Category: "surgery", Total: 100000}},
			Company: approvalCompany(),
			Approvals: []models.Approval{
				{ID: "appr-1", ActCode: "SURG-APPEND", Status: models.ApprovalStatusApproved, QuantityApproved: 1},
			},
			Now: now,
		})
		item := result.Items[0]
		assert.Equal(t, models.ApprovalItemApproved, item.ApprovalStatus)
		assert.Equal(t, "appr-1", item.ApprovalID)
		assert.Equal(t, 80000.0, item.CompanyShare)
	})

	t.Run("missing approval bills at zero coverage with a warning", func(t *testing.T) {
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "SURG-APPEND", Category: "surgery", Total: 100000}},
			Company: approvalCompany(),
			Now:     now,
		})
		item := result.Items[0]
		assert.Equal(t, models.ApprovalItemMissing, item.ApprovalStatus)
		assert.Equal(t, 0.0, item.CoveragePercentage)
		assert.Equal(t, 100000.0, item.PatientShare)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "SURG-APPEND")
	})

	t.Run("auto approve threshold waives the requirement under the amount", func(t *testing.T) {
		company := approvalCompany()
		company.CategorySettings[0].AutoApproveUnderAmount = floatPtr(500000)
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "SURG-MINOR", Category: "surgery", Total: 400000}},
			Company: company,
			Now:     now,
		})
		assert.Equal(t, models.ApprovalItemNotRequired, result.Items[0].ApprovalStatus)
		assert.Equal(t, 320000.0, result.Items[0].CompanyShare)
	})

	t.Run("reference rate converts the total before the threshold check", func(t *testing.T) {
		company := approvalCompany()
		company.CategorySettings[0].AutoApproveUnderAmount = floatPtr(500000)
		result := ComputeCoverage(CoverageInput{
			Items:         []CoverageItemInput{{Code: "SURG-MINOR", Category: "surgery", Total: 400000}},
			Company:       company,
			ReferenceRate: 2,
			Now:           now,
		})
		// 400000 * 2 = 800000 >= 500000, so approval stays required.
		assert.Equal(t, models.ApprovalItemMissing, result.Items[0].ApprovalStatus)
	})

	t.Run("approval quota exhausts within a single pass", func(t *testing.T) {
		result := ComputeCoverage(CoverageInput{
			Items: []CoverageItemInput{
				{Code: "SURG-APPEND", Category: "surgery", Total: 100000},
				{Code: "SURG-APPEND", Category: "surgery", Total: 100000},
			},
			Company: approvalCompany(),
			Approvals: []models.Approval{
				{ID: "appr-1", ActCode: "SURG-APPEND", Status: models.ApprovalStatusApproved, QuantityApproved: 1},
			},
			Now: now,
		})
		assert.Equal(t, models.ApprovalItemApproved, result.Items[0].ApprovalStatus)
		assert.Equal(t, models.ApprovalItemMissing, result.Items[1].ApprovalStatus)
	})

	t.Run("expired approval does not satisfy the requirement", func(t *testing.T) {
		past := now.Add(-time.Hour)
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "SURG-APPEND", Category: "surgery", Total: 100000}},
			Company: approvalCompany(),
			Approvals: []models.Approval{
				{ID: "appr-1", ActCode: "SURG-APPEND", Status: models.ApprovalStatusApproved, QuantityApproved: 1, ValidUntil: &past},
			},
			Now: now,
		})
		assert.Equal(t, models.ApprovalItemMissing, result.Items[0].ApprovalStatus)
	})
}

func TestComputeCoverageCaps(t *testing.T) {
	now := time.Now()

	t.Run("max amount caps the company share per item", func(t *testing.T) {
		company := activeCompany()
		company.CategorySettings = []models.CategorySetting{
			{Category: "imaging", MaxAmount: floatPtr(5000)},
		}
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "IRM", Category: "imaging", Total: 20000}},
			Company: company,
			Now:     now,
		})
		assert.Equal(t, 5000.0, result.Items[0].CompanyShare)
		assert.Equal(t, 15000.0, result.Items[0].PatientShare)
	})

	t.Run("max per category clamps cumulative spend with a warning", func(t *testing.T) {
		company := activeCompany()
		company.CategorySettings = []models.CategorySetting{
			{Category: "lab", MaxPerCategory: floatPtr(10000)},
		}
		result := ComputeCoverage(CoverageInput{
			Items: []CoverageItemInput{
				{Code: "LAB-A", Category: "lab", Total: 10000},
				{Code: "LAB-B", Category: "lab", Total: 10000},
			},
			Company: company,
			Now:     now,
		})
		assert.Equal(t, 8000.0, result.Items[0].CompanyShare)
		assert.Equal(t, 2000.0, result.Items[1].CompanyShare, "only the remaining budget")
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "lab")
	})

	t.Run("seeded category spend counts against the cap", func(t *testing.T) {
		company := activeCompany()
		company.CategorySettings = []models.CategorySetting{
			{Category: "lab", CoveragePercentage: floatPtr(100), MaxPerCategory: floatPtr(10000)},
		}
		result := ComputeCoverage(CoverageInput{
			Items:           []CoverageItemInput{{Code: "LAB-B", Category: "lab", Total: 10000}},
			Company:         company,
			SpentByCategory: map[string]float64{"lab": 9000},
			Now:             now,
		})
		assert.Equal(t, 1000.0, result.Items[0].CompanyShare, "only what the committed spend leaves")
		assert.Equal(t, 9000.0, result.Items[0].PatientShare)
	})

	t.Run("max per visit shifts excess to the patient from the last item", func(t *testing.T) {
		company := activeCompany()
		company.MaxPerVisit = floatPtr(5000)
		result := ComputeCoverage(CoverageInput{
			Items: []CoverageItemInput{
				{Code: "CONSULT", Category: "consultation", Total: 5000},
				{Code: "EXAM", Category: "consultation", Total: 5000},
			},
			Company: company,
			Now:     now,
		})
		// Raw company shares are 4000 each; the 3000 excess comes off EXAM first.
		assert.Equal(t, 4000.0, result.Items[0].CompanyShare)
		assert.Equal(t, 1000.0, result.Items[1].CompanyShare)
		assert.Equal(t, 5000.0, result.TotalCompanyShare)
		assert.Equal(t, 5000.0, result.TotalPatientShare)
		require.NotEmpty(t, result.Warnings)
	})

	t.Run("seeded visit spend counts against the per-visit cap", func(t *testing.T) {
		company := activeCompany()
		company.MaxPerVisit = floatPtr(5000)
		result := ComputeCoverage(CoverageInput{
			Items:      []CoverageItemInput{{Code: "EXAM", Category: "consultation", Total: 5000}},
			Company:    company,
			SpentTotal: 4000,
			Now:        now,
		})
		// Raw share is 4000; the committed 4000 leaves only 1000 under the cap.
		assert.Equal(t, 1000.0, result.Items[0].CompanyShare)
	})
}

func TestComputeCoverageDiscount(t *testing.T) {
	now := time.Now()

	t.Run("discount applies before coverage", func(t *testing.T) {
		company := activeCompany()
		company.GlobalDiscountPercent = 10
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "SURG-APPEND", Category: "surgery", Total: 100000}},
			Company: company,
			Now:     now,
		})
		item := result.Items[0]
		assert.Equal(t, 90000.0, item.EffectivePrice)
		assert.Equal(t, 72000.0, item.CompanyShare)
		assert.Equal(t, 18000.0, item.PatientShare)
	})

	t.Run("category discount overrides the global one", func(t *testing.T) {
		company := activeCompany()
		company.GlobalDiscountPercent = 10
		company.CategorySettings = []models.CategorySetting{
			{Category: "lab", DiscountPercent: 20},
		}
		result := ComputeCoverage(CoverageInput{
			Items:   []CoverageItemInput{{Code: "LAB-NFS", Category: "lab", Total: 1000}},
			Company: company,
			Now:     now,
		})
		assert.Equal(t, 800.0, result.Items[0].EffectivePrice)
	})
}
