package approvals

import (
	"context"
	"errors"
	"fmt"
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

type fakeApprovalRepository struct {
	approvals []models.Approval
	nextID    int
}

func (r *fakeApprovalRepository) FindByID(_ context.Context, approvalID string) (*models.Approval, error) {
	for i := range r.approvals {
		if r.approvals[i].ID == approvalID {
			found := r.approvals[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeApprovalRepository) FindOpenByTuple(_ context.Context, patientID, companyID, actCode string) (*models.Approval, error) {
	for i := range r.approvals {
		a := r.approvals[i]
		if a.PatientID != patientID || a.CompanyID != companyID || a.ActCode != actCode {
			continue
		}
		if a.Status == models.ApprovalStatusPending || a.Status == models.ApprovalStatusApproved {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *fakeApprovalRepository) FindByPatientAndCompany(_ context.Context, patientID, companyID string) ([]models.Approval, error) {
	out := make([]models.Approval, 0)
	for _, a := range r.approvals {
		if a.PatientID == patientID && a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeApprovalRepository) CreateApproval(_ context.Context, approval *models.Approval) (string, error) {
	r.nextID++
	approval.ID = fmt.Sprintf("appr-%d", r.nextID)
	r.approvals = append(r.approvals, *approval)
	return approval.ID, nil
}

func (r *fakeApprovalRepository) UpdateApproval(_ context.Context, approval *models.Approval) error {
	for i := range r.approvals {
		if r.approvals[i].ID == approval.ID {
			r.approvals[i] = *approval
			return nil
		}
	}
	r.approvals = append(r.approvals, *approval)
	return nil
}

func (r *fakeApprovalRepository) byID(approvalID string) *models.Approval {
	for i := range r.approvals {
		if r.approvals[i].ID == approvalID {
			return &r.approvals[i]
		}
	}
	return nil
}

type fakeInvoiceRepository struct {
	invoices []*models.Invoice
	failID   string
	updated  []string
}

func (r *fakeInvoiceRepository) FindByID(_ context.Context, invoiceID string) (*models.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.ID == invoiceID {
			return inv, nil
		}
	}
	return nil, nil
}

func (r *fakeInvoiceRepository) FindOpenByPatientAndCompany(_ context.Context, patientID, companyID string) ([]models.Invoice, error) {
	out := make([]models.Invoice, 0)
	for _, inv := range r.invoices {
		if inv.PatientID == patientID && inv.CompanyID == companyID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepository) CreateInvoice(_ context.Context, invoice *models.Invoice) (string, error) {
	r.invoices = append(r.invoices, invoice)
	return invoice.ID, nil
}

func (r *fakeInvoiceRepository) UpdateInvoice(_ context.Context, invoice *models.Invoice) error {
	if invoice.ID == r.failID {
		return errors.New("write failed")
	}
	for i := range r.invoices {
		if r.invoices[i].ID == invoice.ID {
			r.invoices[i] = invoice
			r.updated = append(r.updated, invoice.ID)
			return nil
		}
	}
	return errors.New("invoice not found")
}

func (r *fakeInvoiceRepository) byID(invoiceID string) *models.Invoice {
	for _, inv := range r.invoices {
		if inv.ID == invoiceID {
			return inv
		}
	}
	return nil
}

type fakeCompanyRepository struct {
	companies map[string]*models.Company
}

func (r *fakeCompanyRepository) FindByID(_ context.Context, companyID string) (*models.Company, error) {
	return r.companies[companyID], nil
}

type fakePatientRepository struct {
	patients map[string]*models.Patient
}

func (r *fakePatientRepository) FindByID(_ context.Context, patientID string) (*models.Patient, error) {
	return r.patients[patientID], nil
}

type fakeBudgetRepository struct {
	created []models.CompanyBudgetEntry
}

func (r *fakeBudgetRepository) CreateEntries(_ context.Context, entries []models.CompanyBudgetEntry) error {
	r.created = append(r.created, entries...)
	return nil
}

func (r *fakeBudgetRepository) FindActiveByInvoice(_ context.Context, _ string) ([]models.CompanyBudgetEntry, error) {
	return nil, nil
}

func (r *fakeBudgetRepository) MarkReversed(_ context.Context, _ []string) error {
	return nil
}

type fakeLockerService struct {
	available bool
	locked    []string
	unlocked  []string
}

func (s *fakeLockerService) TryLock(_ context.Context, key string, _ time.Duration) (bool, string, error) {
	if !s.available {
		return false, "", nil
	}
	s.locked = append(s.locked, key)
	return true, "lock-value", nil
}

func (s *fakeLockerService) Unlock(_ context.Context, key, _ string) error {
	s.unlocked = append(s.unlocked, key)
	return nil
}

type fakeEventPublisher struct {
	events []contracts.LiveEvent
}

func (p *fakeEventPublisher) Publish(_ context.Context, event contracts.LiveEvent) error {
	p.events = append(p.events, event)
	return nil
}

type passthroughTransactionManager struct{}

func (passthroughTransactionManager) WithTransaction(ctx context.Context, fn func(sessCtx context.Context) (interface{}, error)) (interface{}, error) {
	return fn(ctx)
}

type approvalFixture struct {
	usecase   *approvalUsecase
	approvals *fakeApprovalRepository
	invoices  *fakeInvoiceRepository
	companies *fakeCompanyRepository
	patients  *fakePatientRepository
	budgets   *fakeBudgetRepository
	locker    *fakeLockerService
	publisher *fakeEventPublisher
}

func newApprovalFixture() *approvalFixture {
	f := &approvalFixture{
		approvals: &fakeApprovalRepository{},
		invoices:  &fakeInvoiceRepository{},
		companies: &fakeCompanyRepository{companies: map[string]*models.Company{}},
		patients:  &fakePatientRepository{patients: map[string]*models.Patient{}},
		budgets:   &fakeBudgetRepository{},
		locker:    &fakeLockerService{available: true},
		publisher: &fakeEventPublisher{},
	}
	f.usecase = &approvalUsecase{
		ApprovalRepository:      f.approvals,
		InvoiceRepository:       f.invoices,
		CompanyRepository:       f.companies,
		PatientRepository:       f.patients,
		CompanyBudgetRepository: f.budgets,
		LockerService:           f.locker,
		EventPublisher:          f.publisher,
		TransactionManager:      passthroughTransactionManager{},
		InternalConfig: &config.InternalConfig{Billing: config.Billing{
			ApprovalLockTTLInSeconds: 10,
		}},
		Log: zap.NewNop(),
	}
	f.companies.companies["comp-1"] = &models.Company{
		ID:              "comp-1",
		Name:            "Assurance Atlas",
		DefaultCoverage: 80,
		CategorySettings: []models.CategorySetting{
			{Category: "surgery", RequiresApproval: true},
		},
		Contract: models.Contract{Active: true},
	}
	f.patients.patients["pat-1"] = &models.Patient{ID: "pat-1", FirstName: "Amine", LastName: "B."}
	return f
}

func floatPtr(v float64) *float64 { return &v }

// openConventionInvoice builds an applied invoice whose only item is still
// waiting on an approval.
func openConventionInvoice(id, code, category string, total float64) *models.Invoice {
	inv := &models.Invoice{
		ID:                id,
		PatientID:         "pat-1",
		CompanyID:         "comp-1",
		Currency:          "DZD",
		Status:            models.InvoiceStatusIssued,
		Version:           2,
		ConventionApplied: true,
		Items: []models.LineItem{
			{Code: code, Category: category, Quantity: 1, UnitPrice: total, Total: total,
				PatientShare: total, ApprovalStatus: models.ApprovalItemMissing},
		},
	}
	inv.RecomputeSummary()
	return inv
}

func pendingApproval(id, actCode string) models.Approval {
	return models.Approval{
		ID:        id,
		PatientID: "pat-1",
		CompanyID: "comp-1",
		ActCode:   actCode,
		Status:    models.ApprovalStatusPending,
	}
}

func TestRequestApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending approval", func(t *testing.T) {
		f := newApprovalFixture()

		response, err := f.usecase.RequestApproval(ctx, &requests.RequestApprovalRequest{
			PatientID: "pat-1", CompanyID: "comp-1", ActCode: "SURG-APPEND",
		})
		require.NoError(t, err)
		assert.Equal(t, "appr-1", response.ID)
		assert.Equal(t, string(models.ApprovalStatusPending), response.Status)

		stored := f.approvals.byID("appr-1")
		require.NotNil(t, stored)
		assert.Equal(t, "SURG-APPEND", stored.ActCode)
	})

	t.Run("open approval for the same tuple is a conflict", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}

		_, err := f.usecase.RequestApproval(ctx, &requests.RequestApprovalRequest{
			PatientID: "pat-1", CompanyID: "comp-1", ActCode: "SURG-APPEND",
		})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 409, customErr.StatusCode)
	})

	t.Run("closed approval does not block a new request", func(t *testing.T) {
		f := newApprovalFixture()
		rejected := pendingApproval("appr-1", "SURG-APPEND")
		rejected.Status = models.ApprovalStatusRejected
		f.approvals.approvals = []models.Approval{rejected}

		response, err := f.usecase.RequestApproval(ctx, &requests.RequestApprovalRequest{
			PatientID: "pat-1", CompanyID: "comp-1", ActCode: "SURG-APPEND",
		})
		require.NoError(t, err)
		assert.Equal(t, "appr-2", response.ID)
	})

	t.Run("unknown company", func(t *testing.T) {
		f := newApprovalFixture()

		_, err := f.usecase.RequestApproval(ctx, &requests.RequestApprovalRequest{
			PatientID: "pat-1", CompanyID: "ghost", ActCode: "SURG-APPEND",
		})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 404, customErr.StatusCode)
	})

	t.Run("unknown patient", func(t *testing.T) {
		f := newApprovalFixture()

		_, err := f.usecase.RequestApproval(ctx, &requests.RequestApprovalRequest{
			PatientID: "ghost", CompanyID: "comp-1", ActCode: "SURG-APPEND",
		})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 404, customErr.StatusCode)
	})
}

func TestApproveApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("approves a pending request", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}

		response, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{
			QuantityApproved: 2, ApprovedAmount: 150000,
		})
		require.NoError(t, err)
		assert.Equal(t, string(models.ApprovalStatusApproved), response.Status)
		assert.Equal(t, 2, response.QuantityApproved)

		stored := f.approvals.byID("appr-1")
		assert.Equal(t, models.ApprovalStatusApproved, stored.Status)
		assert.Equal(t, 150000.0, stored.ApprovedAmount)
	})

	t.Run("only pending requests can be approved", func(t *testing.T) {
		f := newApprovalFixture()
		used := pendingApproval("appr-1", "SURG-APPEND")
		used.Status = models.ApprovalStatusUsed
		f.approvals.approvals = []models.Approval{used}

		_, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 409, customErr.StatusCode)
	})

	t.Run("malformed validity window is caller-fixable", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}

		_, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{
			QuantityApproved: 1, ValidFrom: "tomorrow",
		})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 400, customErr.StatusCode)
	})

	t.Run("unknown approval", func(t *testing.T) {
		f := newApprovalFixture()

		_, err := f.usecase.ApproveApproval(ctx, "ghost", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 404, customErr.StatusCode)
	})

	t.Run("open invoice items pick the coverage up", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}
		f.invoices.invoices = []*models.Invoice{openConventionInvoice("inv-1", "SURG-APPEND", "surgery", 100000)}

		_, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		require.NoError(t, err)

		invoice := f.invoices.byID("inv-1")
		item := invoice.Items[0]
		assert.Equal(t, models.ApprovalItemApproved, item.ApprovalStatus)
		assert.Equal(t, "appr-1", item.ApprovalID)
		assert.Equal(t, 80000.0, item.CompanyShare)
		assert.Equal(t, 20000.0, item.PatientShare)
		assert.Equal(t, int64(3), invoice.Version)

		stored := f.approvals.byID("appr-1")
		assert.Equal(t, 1, stored.UsedCount)
		assert.Equal(t, models.ApprovalStatusUsed, stored.Status)

		require.Len(t, f.budgets.created, 1)
		assert.Equal(t, "surgery", f.budgets.created[0].Category)
		assert.Equal(t, 80000.0, f.budgets.created[0].Amount)

		require.Len(t, f.publisher.events, 1)
		assert.Equal(t, "invoice.coverage_rescanned", f.publisher.events[0].Type)
		assert.Equal(t, []string{"lock:approvals:pat-1:comp-1"}, f.locker.locked)
		assert.Equal(t, f.locker.locked, f.locker.unlocked, "lock released")
	})

	t.Run("upgrade respects the committed category budget", func(t *testing.T) {
		f := newApprovalFixture()
		f.companies.companies["comp-1"].CategorySettings = []models.CategorySetting{
			{Category: "imaging", RequiresApproval: true, CoveragePercentage: floatPtr(100), MaxPerCategory: floatPtr(100)},
		}
		consumed := pendingApproval("appr-used", "SCAN-IRM")
		consumed.Status = models.ApprovalStatusUsed
		consumed.QuantityApproved = 1
		consumed.UsedCount = 1
		f.approvals.approvals = []models.Approval{consumed, pendingApproval("appr-2", "SCAN-TDM")}

		invoice := openConventionInvoice("inv-1", "SCAN-TDM", "imaging", 100)
		invoice.Items = append([]models.LineItem{
			{Code: "SCAN-IRM", Category: "imaging", Quantity: 1, UnitPrice: 90, Total: 90,
				CoveragePercentage: 100, CompanyShare: 90, PatientShare: 0,
				ApprovalStatus: models.ApprovalItemApproved, ApprovalID: "appr-used"},
		}, invoice.Items...)
		invoice.RecomputeSummary()
		f.invoices.invoices = []*models.Invoice{invoice}

		_, err := f.usecase.ApproveApproval(ctx, "appr-2", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		require.NoError(t, err)

		stored := f.invoices.byID("inv-1")
		assert.Equal(t, 90.0, stored.Items[0].CompanyShare, "committed item untouched")
		assert.Equal(t, 10.0, stored.Items[1].CompanyShare, "clamped to what the cap leaves")
		assert.Equal(t, 90.0, stored.Items[1].PatientShare)
		assert.Equal(t, 100.0, stored.Summary.CompanyShare)

		require.Len(t, f.budgets.created, 1)
		assert.Equal(t, 10.0, f.budgets.created[0].Amount)
	})

	t.Run("upgrade respects the committed per-visit cap", func(t *testing.T) {
		f := newApprovalFixture()
		f.companies.companies["comp-1"] = &models.Company{
			ID:              "comp-1",
			DefaultCoverage: 100,
			MaxPerVisit:     floatPtr(100),
			ActOverrides:    []models.ActOverride{{Code: "SCAN-TDM", RequiresApproval: true}},
			Contract:        models.Contract{Active: true},
		}
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SCAN-TDM")}

		invoice := openConventionInvoice("inv-1", "SCAN-TDM", "imaging", 100)
		invoice.Items = append([]models.LineItem{
			{Code: "ECHO", Category: "imaging", Quantity: 1, UnitPrice: 90, Total: 90,
				CoveragePercentage: 100, CompanyShare: 90, PatientShare: 0,
				ApprovalStatus: models.ApprovalItemNotRequired},
		}, invoice.Items...)
		invoice.RecomputeSummary()
		f.invoices.invoices = []*models.Invoice{invoice}

		_, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		require.NoError(t, err)

		stored := f.invoices.byID("inv-1")
		assert.Equal(t, 10.0, stored.Items[1].CompanyShare)
		assert.Equal(t, 100.0, stored.Summary.CompanyShare)
	})

	t.Run("folded payer discounts are not reapplied", func(t *testing.T) {
		f := newApprovalFixture()
		f.companies.companies["comp-1"].GlobalDiscountPercent = 10
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}

		invoice := openConventionInvoice("inv-1", "SURG-APPEND", "surgery", 100000)
		invoice.Items = append([]models.LineItem{
			{Code: "CONSULT", Category: "consultation", Quantity: 1, UnitPrice: 5000,
				Discount: 500, Total: 4500, CoveragePercentage: 80,
				CompanyShare: 3600, PatientShare: 900,
				ApprovalStatus: models.ApprovalItemNotRequired},
		}, invoice.Items...)
		invoice.RecomputeSummary()
		f.invoices.invoices = []*models.Invoice{invoice}

		_, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		require.NoError(t, err)

		stored := f.invoices.byID("inv-1")
		assert.Equal(t, 4500.0, stored.Items[0].Total, "already-folded item untouched")
		assert.Equal(t, 500.0, stored.Items[0].Discount)
		assert.Equal(t, 90000.0, stored.Items[1].Total, "discount folded exactly once")
		assert.Equal(t, 10000.0, stored.Items[1].Discount)
		assert.Equal(t, 72000.0, stored.Items[1].CompanyShare)
	})

	t.Run("one failing invoice never blocks the others", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}
		f.invoices.invoices = []*models.Invoice{
			openConventionInvoice("inv-bad", "SURG-APPEND", "surgery", 100000),
			openConventionInvoice("inv-good", "SURG-APPEND", "surgery", 100000),
		}
		f.invoices.failID = "inv-bad"

		_, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{QuantityApproved: 2})
		require.NoError(t, err, "decision persists despite the failed sweep")

		assert.Equal(t, models.ApprovalItemMissing, f.invoices.byID("inv-bad").Items[0].ApprovalStatus)
		assert.Equal(t, models.ApprovalItemApproved, f.invoices.byID("inv-good").Items[0].ApprovalStatus)
		assert.Equal(t, []string{"inv-good"}, f.invoices.updated)
	})

	t.Run("held lock skips the sweep, decision still persists", func(t *testing.T) {
		f := newApprovalFixture()
		f.locker.available = false
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}
		f.invoices.invoices = []*models.Invoice{openConventionInvoice("inv-1", "SURG-APPEND", "surgery", 100000)}

		_, err := f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalStatusApproved, f.approvals.byID("appr-1").Status)
		assert.Equal(t, models.ApprovalItemMissing, f.invoices.byID("inv-1").Items[0].ApprovalStatus)
		assert.Empty(t, f.invoices.updated)
	})

	t.Run("invoice with net payments is left alone", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}
		invoice := openConventionInvoice("inv-1", "SURG-APPEND", "surgery", 100000)
		_, err := invoice.ApplyPayment(models.PaymentInput{Amount: 1000, Method: "cash", Author: "cashier", Now: time.Now()})
		require.NoError(t, err)
		f.invoices.invoices = []*models.Invoice{invoice}

		_, err = f.usecase.ApproveApproval(ctx, "appr-1", &requests.ApproveApprovalRequest{QuantityApproved: 1})
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalItemMissing, f.invoices.byID("inv-1").Items[0].ApprovalStatus)
		assert.Empty(t, f.invoices.updated)
	})
}

func TestRejectApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a pending request with its reason", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}

		response, err := f.usecase.RejectApproval(ctx, "appr-1", &requests.RejectApprovalRequest{Reason: "not medically justified"})
		require.NoError(t, err)
		assert.Equal(t, string(models.ApprovalStatusRejected), response.Status)
		assert.Equal(t, "not medically justified", response.RejectReason)

		_, err = f.usecase.RejectApproval(ctx, "appr-1", &requests.RejectApprovalRequest{Reason: "again"})
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 409, customErr.StatusCode)
	})

	t.Run("items waiting on the rejected request stay patient-paid", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}
		f.invoices.invoices = []*models.Invoice{openConventionInvoice("inv-1", "SURG-APPEND", "surgery", 100000)}

		_, err := f.usecase.RejectApproval(ctx, "appr-1", &requests.RejectApprovalRequest{Reason: "refused"})
		require.NoError(t, err)

		item := f.invoices.byID("inv-1").Items[0]
		assert.Equal(t, models.ApprovalItemMissing, item.ApprovalStatus)
		assert.Equal(t, 100000.0, item.PatientShare)
		assert.Empty(t, f.invoices.updated)
	})

	t.Run("another usable approval covers the act after a rejection", func(t *testing.T) {
		f := newApprovalFixture()
		granted := pendingApproval("appr-2", "SURG-APPEND")
		granted.Status = models.ApprovalStatusApproved
		granted.QuantityApproved = 1
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND"), granted}
		f.invoices.invoices = []*models.Invoice{openConventionInvoice("inv-1", "SURG-APPEND", "surgery", 100000)}

		_, err := f.usecase.RejectApproval(ctx, "appr-1", &requests.RejectApprovalRequest{Reason: "duplicate request"})
		require.NoError(t, err)

		item := f.invoices.byID("inv-1").Items[0]
		assert.Equal(t, models.ApprovalItemApproved, item.ApprovalStatus)
		assert.Equal(t, "appr-2", item.ApprovalID)
		assert.Equal(t, 1, f.approvals.byID("appr-2").UsedCount)
	})
}

func TestCancelApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels a pending request", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.approvals = []models.Approval{pendingApproval("appr-1", "SURG-APPEND")}

		response, err := f.usecase.CancelApproval(ctx, "appr-1")
		require.NoError(t, err)
		assert.Equal(t, string(models.ApprovalStatusCancelled), response.Status)
	})

	t.Run("terminal states cannot be cancelled", func(t *testing.T) {
		f := newApprovalFixture()
		used := pendingApproval("appr-1", "SURG-APPEND")
		used.Status = models.ApprovalStatusUsed
		f.approvals.approvals = []models.Approval{used}

		_, err := f.usecase.CancelApproval(ctx, "appr-1")
		var customErr *exceptions.CustomError
		require.ErrorAs(t, err, &customErr)
		assert.Equal(t, 409, customErr.StatusCode)
	})
}

func TestCheckApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("usable approval reports remaining quantity", func(t *testing.T) {
		f := newApprovalFixture()
		granted := pendingApproval("appr-1", "SURG-APPEND")
		granted.Status = models.ApprovalStatusApproved
		granted.QuantityApproved = 3
		granted.UsedCount = 1
		f.approvals.approvals = []models.Approval{granted}

		response, err := f.usecase.CheckApproval(ctx, "appr-1")
		require.NoError(t, err)
		assert.True(t, response.Valid)
		assert.Equal(t, string(models.ApprovalStatusApproved), response.Status)
		assert.Equal(t, 2, response.Remaining)
	})

	t.Run("expiry folds in at read time", func(t *testing.T) {
		f := newApprovalFixture()
		yesterday := time.Now().Add(-24 * time.Hour)
		expired := pendingApproval("appr-1", "SURG-APPEND")
		expired.Status = models.ApprovalStatusApproved
		expired.QuantityApproved = 1
		expired.ValidUntil = &yesterday
		f.approvals.approvals = []models.Approval{expired}

		response, err := f.usecase.CheckApproval(ctx, "appr-1")
		require.NoError(t, err)
		assert.False(t, response.Valid)
		assert.Equal(t, string(models.ApprovalStatusExpired), response.Status)
	})
}

func TestListValidApprovals(t *testing.T) {
	ctx := context.Background()

	t.Run("only usable approvals are listed", func(t *testing.T) {
		f := newApprovalFixture()
		usable := pendingApproval("appr-1", "SURG-APPEND")
		usable.Status = models.ApprovalStatusApproved
		usable.QuantityApproved = 1
		exhausted := pendingApproval("appr-2", "SCAN-IRM")
		exhausted.Status = models.ApprovalStatusUsed
		exhausted.QuantityApproved = 1
		exhausted.UsedCount = 1
		f.approvals.approvals = []models.Approval{
			usable,
			exhausted,
			pendingApproval("appr-3", "CONSULT"),
		}

		listed, err := f.usecase.ListValidApprovals(ctx, "pat-1", "comp-1")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "appr-1", listed[0].ID)
	})
}
