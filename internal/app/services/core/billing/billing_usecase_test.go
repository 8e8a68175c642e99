package billing

import (
	"context"
	"testing"
	"time"

	"medflow-service/internal/app/config"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/dto/requests"
	"medflow-service/internal/pkg/exceptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubInvoiceRepository struct {
	invoices map[string]*models.Invoice
}

func (r *stubInvoiceRepository) FindByID(_ context.Context, invoiceID string) (*models.Invoice, error) {
	return r.invoices[invoiceID], nil
}

func (r *stubInvoiceRepository) FindOpenByPatientAndCompany(_ context.Context, _, _ string) ([]models.Invoice, error) {
	return nil, nil
}

func (r *stubInvoiceRepository) CreateInvoice(_ context.Context, invoice *models.Invoice) (string, error) {
	r.invoices[invoice.ID] = invoice
	return invoice.ID, nil
}

func (r *stubInvoiceRepository) UpdateInvoice(_ context.Context, invoice *models.Invoice) error {
	r.invoices[invoice.ID] = invoice
	return nil
}

type stubCompanyRepository struct {
	companies map[string]*models.Company
}

func (r *stubCompanyRepository) FindByID(_ context.Context, companyID string) (*models.Company, error) {
	return r.companies[companyID], nil
}

type stubPatientRepository struct {
	patients map[string]*models.Patient
}

func (r *stubPatientRepository) FindByID(_ context.Context, patientID string) (*models.Patient, error) {
	return r.patients[patientID], nil
}

type stubApprovalRepository struct {
	approvals []models.Approval
	updated   []*models.Approval
}

func (r *stubApprovalRepository) FindByID(_ context.Context, approvalID string) (*models.Approval, error) {
	for i := range r.approvals {
		if r.approvals[i].ID == approvalID {
			return &r.approvals[i], nil
		}
	}
	return nil, nil
}

func (r *stubApprovalRepository) FindOpenByTuple(_ context.Context, _, _, _ string) (*models.Approval, error) {
	return nil, nil
}

func (r *stubApprovalRepository) FindByPatientAndCompany(_ context.Context, _, _ string) ([]models.Approval, error) {
	return r.approvals, nil
}

func (r *stubApprovalRepository) CreateApproval(_ context.Context, approval *models.Approval) (string, error) {
	r.approvals = append(r.approvals, *approval)
	return approval.ID, nil
}

func (r *stubApprovalRepository) UpdateApproval(_ context.Context, approval *models.Approval) error {
	r.updated = append(r.updated, approval)
	return nil
}

type stubBudgetRepository struct {
	created []models.CompanyBudgetEntry
}

func (r *stubBudgetRepository) CreateEntries(_ context.Context, entries []models.CompanyBudgetEntry) error {
	r.created = append(r.created, entries...)
	return nil
}

func (r *stubBudgetRepository) FindActiveByInvoice(_ context.Context, _ string) ([]models.CompanyBudgetEntry, error) {
	return nil, nil
}

func (r *stubBudgetRepository) MarkReversed(_ context.Context, _ []string) error {
	return nil
}

type stubCurrencyService struct{}

func (stubCurrencyService) Rate(_ context.Context, _, _ string) (float64, error) {
	return 1, nil
}

type stubLockerService struct {
	available bool
	locked    []string
	unlocked  []string
}

func (s *stubLockerService) TryLock(_ context.Context, key string, _ time.Duration) (bool, string, error) {
	if !s.available {
		return false, "", nil
	}
	s.locked = append(s.locked, key)
	return true, "lock-value", nil
}

func (s *stubLockerService) Unlock(_ context.Context, key, _ string) error {
	s.unlocked = append(s.unlocked, key)
	return nil
}

type stubEventPublisher struct {
	events []contracts.LiveEvent
}

func (p *stubEventPublisher) Publish(_ context.Context, event contracts.LiveEvent) error {
	p.events = append(p.events, event)
	return nil
}

type directTransactionManager struct{}

func (directTransactionManager) WithTransaction(ctx context.Context, fn func(sessCtx context.Context) (interface{}, error)) (interface{}, error) {
	return fn(ctx)
}

type billingFixture struct {
	usecase   *billingUsecase
	invoices  *stubInvoiceRepository
	companies *stubCompanyRepository
	patients  *stubPatientRepository
	approvals *stubApprovalRepository
	budgets   *stubBudgetRepository
	locker    *stubLockerService
	publisher *stubEventPublisher
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		invoices:  &stubInvoiceRepository{invoices: map[string]*models.Invoice{}},
		companies: &stubCompanyRepository{companies: map[string]*models.Company{}},
		patients:  &stubPatientRepository{patients: map[string]*models.Patient{}},
		approvals: &stubApprovalRepository{},
		budgets:   &stubBudgetRepository{},
		locker:    &stubLockerService{available: true},
		publisher: &stubEventPublisher{},
	}
	f.usecase = &billingUsecase{
		InvoiceRepository:       f.invoices,
		CompanyRepository:       f.companies,
		PatientRepository:       f.patients,
		ApprovalRepository:      f.approvals,
		CompanyBudgetRepository: f.budgets,
		CurrencyService:         stubCurrencyService{},
		LockerService:           f.locker,
		EventPublisher:          f.publisher,
		TransactionManager:      directTransactionManager{},
		InternalConfig: &config.InternalConfig{Billing: config.Billing{
			LedgerCurrency:           "DZD",
			ReferenceCurrency:        "DZD",
			ApprovalLockTTLInSeconds: 10,
		}},
		Log: zap.NewNop(),
	}
	return f
}

func conventionInvoice() *models.Invoice {
	inv := &models.Invoice{
		ID:        "inv-1",
		PatientID: "pat-1",
		Currency:  "DZD",
		Status:    models.InvoiceStatusIssued,
		Version:   1,
		Items: []models.LineItem{
			{Code: "CONSULT", Category: "consultation", Quantity: 1, UnitPrice: 5000, Total: 5000, PatientShare: 5000},
			{Code: "SURG-APPEND", Category: "surgery", Quantity: 1, UnitPrice: 100000, Total: 100000, PatientShare: 100000},
		},
	}
	inv.RecomputeSummary()
	return inv
}

func seedBillingFixture(f *billingFixture) {
	f.invoices.invoices["inv-1"] = conventionInvoice()
	company := activeCompany()
	company.CategorySettings = []models.CategorySetting{
		{Category: "surgery", RequiresApproval: true},
	}
	f.companies.companies["comp-1"] = company
	f.patients.patients["pat-1"] = &models.Patient{ID: "pat-1", FirstName: "Amine", LastName: "B."}
}

func TestApplyConvention(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the split, consumes approvals and records budget entries", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.approvals.approvals = []models.Approval{
			{ID: "appr-1", PatientID: "pat-1", CompanyID: "comp-1", ActCode: "SURG-APPEND",
				Status: models.ApprovalStatusApproved, QuantityApproved: 1},
		}

		response, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		require.NoError(t, err)
		require.True(t, response.CanApply)

		invoice := response.Invoice
		assert.True(t, invoice.ConventionApplied)
		assert.Equal(t, "comp-1", invoice.CompanyID)
		assert.Equal(t, int64(2), invoice.Version)
		assert.Equal(t, 84000.0, invoice.Summary.CompanyShare)
		assert.Equal(t, 21000.0, invoice.Summary.PatientShare)

		approval := &f.approvals.approvals[0]
		assert.Equal(t, models.ApprovalStatusUsed, approval.Status)
		assert.Equal(t, 1, approval.UsedCount)
		require.Len(t, f.approvals.updated, 1)

		require.Len(t, f.budgets.created, 2)
		byCategory := map[string]float64{}
		for _, entry := range f.budgets.created {
			byCategory[entry.Category] = entry.Amount
			assert.Equal(t, "inv-1", entry.InvoiceID)
			assert.Equal(t, "comp-1", entry.CompanyID)
		}
		assert.Equal(t, 4000.0, byCategory["consultation"])
		assert.Equal(t, 80000.0, byCategory["surgery"])

		assert.Equal(t, []string{"lock:approvals:pat-1:comp-1"}, f.locker.locked)
		assert.Equal(t, f.locker.locked, f.locker.unlocked, "lock released")
		require.Len(t, f.publisher.events, 1)
		assert.Equal(t, "invoice.convention_applied", f.publisher.events[0].Type)
	})

	t.Run("missing approval bills the act at zero coverage", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)

		response, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		require.NoError(t, err)

		invoice := response.Invoice
		assert.Equal(t, 4000.0, invoice.Summary.CompanyShare, "consultation only")
		assert.Equal(t, 101000.0, invoice.Summary.PatientShare)
		assert.Equal(t, models.ApprovalItemMissing, invoice.Items[1].ApprovalStatus)
		assert.NotEmpty(t, invoice.Warnings)
		assert.Empty(t, f.approvals.updated)
	})

	t.Run("payer discount folds into the line items", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.companies.companies["comp-1"].CategorySettings = nil
		f.companies.companies["comp-1"].GlobalDiscountPercent = 10

		response, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		require.NoError(t, err)

		item := response.Invoice.Items[1]
		assert.Equal(t, 10000.0, item.Discount)
		assert.Equal(t, 90000.0, item.Total)
		assert.Equal(t, item.Total, item.CompanyShare+item.PatientShare)
	})

	t.Run("package deal folds matched acts before coverage", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.companies.companies["comp-1"].CategorySettings = nil
		f.companies.companies["comp-1"].Packages = []models.PackageDeal{
			{Name: "Bilan chirurgie", ActCodes: []string{"CONSULT", "SURG-APPEND"}, Price: 90000, Active: true},
		}

		response, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		require.NoError(t, err)
		require.Len(t, response.PackagesApplied, 1)
		assert.Equal(t, 15000.0, response.PackagesApplied[0].Savings)
		require.Len(t, response.Invoice.Items, 1)
		assert.True(t, response.Invoice.Items[0].IsPackage)
		assert.Equal(t, 90000.0, response.Invoice.Items[0].Total)
	})

	t.Run("unusable contract returns issues without error", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.companies.companies["comp-1"].Contract.Active = false

		response, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		require.NoError(t, err)
		assert.False(t, response.CanApply)
		assert.Contains(t, response.ContractIssues, "contract is not active")
		assert.False(t, f.invoices.invoices["inv-1"].ConventionApplied)
		assert.Empty(t, f.locker.locked, "no lock taken for a dead contract")
	})

	t.Run("held lock is a conflict", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.locker.available = false

		_, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 409, customErr.StatusCode)
	})

	t.Run("invoice with payments is rejected", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		inv := f.invoices.invoices["inv-1"]
		_, err := inv.ApplyPayment(models.PaymentInput{Amount: 1000, Method: "cash", Author: "cashier", Now: time.Now()})
		require.NoError(t, err)

		_, err = f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 409, customErr.StatusCode)
		assert.Equal(t, f.locker.locked, f.locker.unlocked, "lock released on failure")
	})

	t.Run("reapplying a convention is a conflict", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.companies.companies["comp-1"].CategorySettings = nil
		f.companies.companies["comp-1"].GlobalDiscountPercent = 10

		first, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		require.NoError(t, err)
		foldedTotal := first.Invoice.Items[1].Total

		_, err = f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "comp-1"})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 409, customErr.StatusCode)
		assert.Equal(t, foldedTotal, f.invoices.invoices["inv-1"].Items[1].Total, "discount folded exactly once")
		assert.Len(t, f.locker.locked, 1, "guard fires before the lock is taken")
	})

	t.Run("unknown company", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)

		_, err := f.usecase.ApplyConvention(ctx, "inv-1", &requests.ApplyConventionRequest{CompanyID: "ghost"})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 404, customErr.StatusCode)
	})
}

func TestPreviewCoverage(t *testing.T) {
	ctx := context.Background()

	t.Run("preview persists nothing", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.approvals.approvals = []models.Approval{
			{ID: "appr-1", PatientID: "pat-1", CompanyID: "comp-1", ActCode: "SURG-APPEND",
				Status: models.ApprovalStatusApproved, QuantityApproved: 1},
		}

		response, err := f.usecase.PreviewCoverage(ctx, &requests.CoveragePreviewRequest{
			PatientID: "pat-1",
			CompanyID: "comp-1",
			Items: []requests.BillingItemRequest{
				{Code: "SURG-APPEND", Category: "surgery", Quantity: 1, UnitPrice: 100000},
			},
		})
		require.NoError(t, err)
		assert.True(t, response.CanApply)
		assert.Equal(t, 80000.0, response.TotalCompanyShare)
		assert.Equal(t, 20000.0, response.TotalPatientShare)

		assert.Empty(t, f.approvals.updated, "no approval consumed")
		assert.Empty(t, f.budgets.created, "no budget entry written")
		assert.Empty(t, f.publisher.events)
		assert.Equal(t, 0, f.approvals.approvals[0].UsedCount)
	})

	t.Run("patient snapshot overrides the payer default", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.companies.companies["comp-1"].CategorySettings = nil
		f.patients.patients["pat-1"].Convention = &models.ConventionSnapshot{
			CompanyID:          "comp-1",
			CoveragePercentage: floatPtr(50),
		}

		response, err := f.usecase.PreviewCoverage(ctx, &requests.CoveragePreviewRequest{
			PatientID: "pat-1",
			CompanyID: "comp-1",
			Items: []requests.BillingItemRequest{
				{Code: "CONSULT", Category: "consultation", Quantity: 1, UnitPrice: 5000},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 2500.0, response.TotalCompanyShare)
	})

	t.Run("snapshot for another payer is ignored", func(t *testing.T) {
		f := newBillingFixture()
		seedBillingFixture(f)
		f.companies.companies["comp-1"].CategorySettings = nil
		f.patients.patients["pat-1"].Convention = &models.ConventionSnapshot{
			CompanyID:          "other-comp",
			CoveragePercentage: floatPtr(50),
		}

		response, err := f.usecase.PreviewCoverage(ctx, &requests.CoveragePreviewRequest{
			PatientID: "pat-1",
			CompanyID: "comp-1",
			Items: []requests.BillingItemRequest{
				{Code: "CONSULT", Category: "consultation", Quantity: 1, UnitPrice: 5000},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 4000.0, response.TotalCompanyShare, "payer default applies")
	})
}
