package approvals

import (
	"context"
	"fmt"
	"medflow-service/internal/app/config"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/app/services/core/billing"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/dto/requests"
	"medflow-service/internal/pkg/dto/responses"
	"medflow-service/internal/pkg/exceptions"
	"medflow-service/internal/pkg/utils"
	"sync"
	"time"

	"go.uber.org/zap"
)

type approvalUsecase struct {
	ApprovalRepository      contracts.ApprovalRepository
	InvoiceRepository       contracts.InvoiceRepository
	CompanyRepository       contracts.CompanyRepository
	PatientRepository       contracts.PatientRepository
	CompanyBudgetRepository contracts.CompanyBudgetRepository
	LockerService           contracts.LockerService
	EventPublisher          contracts.EventPublisher
	TransactionManager      contracts.TransactionManager
	InternalConfig          *config.InternalConfig
	Log                     *zap.Logger
}

var (
	approvalUsecaseInstance contracts.ApprovalUsecase
	onceApprovalUsecase     sync.Once
)

func NewApprovalUsecase(
	approvalRepository contracts.ApprovalRepository,
	invoiceRepository contracts.InvoiceRepository,
	companyRepository contracts.CompanyRepository,
	patientRepository contracts.PatientRepository,
	companyBudgetRepository contracts.CompanyBudgetRepository,
	lockerService contracts.LockerService,
	eventPublisher contracts.EventPublisher,
	transactionManager contracts.TransactionManager,
	internalConfig *config.InternalConfig,
	logger *zap.Logger,
) contracts.ApprovalUsecase {
	onceApprovalUsecase.Do(func() {
		approvalUsecaseInstance = &approvalUsecase{
			ApprovalRepository:      approvalRepository,
			InvoiceRepository:       invoiceRepository,
			CompanyRepository:       companyRepository,
			PatientRepository:       patientRepository,
			CompanyBudgetRepository: companyBudgetRepository,
			LockerService:           lockerService,
			EventPublisher:          eventPublisher,
			TransactionManager:      transactionManager,
			InternalConfig:          internalConfig,
			Log:                     logger,
		}
	})
	return approvalUsecaseInstance
}

func (uc *approvalUsecase) RequestApproval(ctx context.Context, request *requests.RequestApprovalRequest) (*responses.ApprovalResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("approvalUsecase.RequestApproval called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingPatientIDKey, request.PatientID),
		zap.String(constvars.LoggingCompanyIDKey, request.CompanyID),
		zap.String(constvars.LoggingActCodeKey, request.ActCode),
	)

	company, err := uc.CompanyRepository.FindByID(ctx, request.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, exceptions.ErrCompanyNotFound(fmt.Errorf("company %s", request.CompanyID))
	}
	patient, err := uc.PatientRepository.FindByID(ctx, request.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, exceptions.ErrPatientNotFound(fmt.Errorf("patient %s", request.PatientID))
	}

	existing, err := uc.ApprovalRepository.FindOpenByTuple(ctx, request.PatientID, request.CompanyID, request.ActCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, exceptions.ErrApprovalAlreadyOpen(fmt.Errorf("approval %s is %s", existing.ID, existing.Status))
	}

	now := time.Now()
	approval := &models.Approval{
		PatientID:   request.PatientID,
		CompanyID:   request.CompanyID,
		ActCode:     request.ActCode,
		Status:      models.ApprovalStatusPending,
		RequestedBy: utils.AuthorFromContext(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	approvalID, err := uc.ApprovalRepository.CreateApproval(ctx, approval)
	if err != nil {
		return nil, err
	}
	approval.ID = approvalID

	uc.Log.Info("approvalUsecase.RequestApproval created",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingApprovalIDKey, approvalID),
	)
	return responses.NewApprovalResponse(approval, now), nil
}

func (uc *approvalUsecase) ApproveApproval(ctx context.Context, approvalID string, request *requests.ApproveApprovalRequest) (*responses.ApprovalResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("approvalUsecase.ApproveApproval called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingApprovalIDKey, approvalID),
	)

	approval, err := uc.ApprovalRepository.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, exceptions.ErrApprovalNotFound(fmt.Errorf("approval %s", approvalID))
	}

	validFrom, err := parseOptionalTime(request.ValidFrom)
	if err != nil {
		return nil, exceptions.ErrClientCustomMessage(fmt.Errorf("validFrom must be RFC3339"))
	}
	validUntil, err := parseOptionalTime(request.ValidUntil)
	if err != nil {
		return nil, exceptions.ErrClientCustomMessage(fmt.Errorf("validUntil must be RFC3339"))
	}

	now := time.Now()
	err = approval.Approve(request.QuantityApproved, request.ApprovedAmount, validFrom, validUntil, utils.AuthorFromContext(ctx), now)
	if err != nil {
		return nil, exceptions.ErrApprovalTransition(err)
	}
	if err := uc.ApprovalRepository.UpdateApproval(ctx, approval); err != nil {
		return nil, err
	}

	// Open invoices billed at 0% while this approval was pending pick the
	// coverage up now. Each invoice is rescanned in isolation so one failure
	// never blocks the decision itself.
	uc.rescanMissingApprovals(ctx, approval, now)

	uc.Log.Info("approvalUsecase.ApproveApproval approved",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingApprovalIDKey, approvalID),
		zap.Int("quantity_approved", approval.QuantityApproved),
	)
	return responses.NewApprovalResponse(approval, now), nil
}

func (uc *approvalUsecase) RejectApproval(ctx context.Context, approvalID string, request *requests.RejectApprovalRequest) (*responses.ApprovalResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("approvalUsecase.RejectApproval called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingApprovalIDKey, approvalID),
	)

	approval, err := uc.ApprovalRepository.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, exceptions.ErrApprovalNotFound(fmt.Errorf("approval %s", approvalID))
	}

	now := time.Now()
	if err := approval.Reject(request.Reason, utils.AuthorFromContext(ctx), now); err != nil {
		return nil, exceptions.ErrApprovalTransition(err)
	}
	if err := uc.ApprovalRepository.UpdateApproval(ctx, approval); err != nil {
		return nil, err
	}

	// A rejection re-evaluates open invoices for the same act too: another
	// usable approval may cover items this request left at 0%. A rejected
	// approval was never consumed, so there is nothing to downgrade.
	uc.rescanMissingApprovals(ctx, approval, now)

	return responses.NewApprovalResponse(approval, now), nil
}

func (uc *approvalUsecase) CancelApproval(ctx context.Context, approvalID string) (*responses.ApprovalResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("approvalUsecase.CancelApproval called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingApprovalIDKey, approvalID),
	)

	approval, err := uc.ApprovalRepository.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, exceptions.ErrApprovalNotFound(fmt.Errorf("approval %s", approvalID))
	}

	now := time.Now()
	if err := approval.CancelAdministratively(utils.AuthorFromContext(ctx), now); err != nil {
		return nil, exceptions.ErrApprovalTransition(err)
	}
	if err := uc.ApprovalRepository.UpdateApproval(ctx, approval); err != nil {
		return nil, err
	}
	return responses.NewApprovalResponse(approval, now), nil
}

func (uc *approvalUsecase) CheckApproval(ctx context.Context, approvalID string) (*responses.CheckApprovalResponse, error) {
	approval, err := uc.ApprovalRepository.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, exceptions.ErrApprovalNotFound(fmt.Errorf("approval %s", approvalID))
	}

	now := time.Now()
	remaining := 0
	if approval.QuantityApproved > approval.UsedCount {
		remaining = approval.QuantityApproved - approval.UsedCount
	}
	return &responses.CheckApprovalResponse{
		Valid:     approval.IsUsable(now),
		Status:    string(approval.EffectiveStatus(now)),
		Remaining: remaining,
	}, nil
}

func (uc *approvalUsecase) ListValidApprovals(ctx context.Context, patientID, companyID string) ([]responses.ApprovalResponse, error) {
	approvals, err := uc.ApprovalRepository.FindByPatientAndCompany(ctx, patientID, companyID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	valid := make([]responses.ApprovalResponse, 0)
	for i := range approvals {
		if approvals[i].IsUsable(now) {
			valid = append(valid, *responses.NewApprovalResponse(&approvals[i], now))
		}
	}
	return valid, nil
}

// rescanMissingApprovals upgrades items billed at 0% coverage on open,
// unpaid invoices once their approval is granted. Strictly best-effort:
// failures are logged per invoice and never surfaced to the approver.
func (uc *approvalUsecase) rescanMissingApprovals(ctx context.Context, approval *models.Approval, now time.Time) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	lockKey := fmt.Sprintf("lock:approvals:%s:%s", approval.PatientID, approval.CompanyID)
	lockTTL := time.Duration(uc.InternalConfig.Billing.ApprovalLockTTLInSeconds) * time.Second
	acquired, lockValue, err := uc.LockerService.TryLock(ctx, lockKey, lockTTL)
	if err != nil || !acquired {
		uc.Log.Warn("approvalUsecase.rescanMissingApprovals skipped, lock unavailable",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingRedisKey, lockKey),
			zap.Error(err),
		)
		return
	}
	defer func() {
		if unlockErr := uc.LockerService.Unlock(ctx, lockKey, lockValue); unlockErr != nil {
			uc.Log.Warn("approvalUsecase.rescanMissingApprovals failed to release lock",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingRedisKey, lockKey),
				zap.Error(unlockErr),
			)
		}
	}()

	company, err := uc.CompanyRepository.FindByID(ctx, approval.CompanyID)
	if err != nil || company == nil {
		return
	}
	patient, err := uc.PatientRepository.FindByID(ctx, approval.PatientID)
	if err != nil || patient == nil {
		return
	}
	invoices, err := uc.InvoiceRepository.FindOpenByPatientAndCompany(ctx, approval.PatientID, approval.CompanyID)
	if err != nil {
		uc.Log.Warn("approvalUsecase.rescanMissingApprovals could not list invoices",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		return
	}

	for i := range invoices {
		invoice := &invoices[i]
		if !invoice.ConventionApplied || invoice.NetPaid() > 0 {
			continue
		}
		if !hasMissingItemFor(invoice, approval.ActCode) {
			continue
		}
		if err := uc.rescanInvoice(ctx, invoice, company, patient, approval, now); err != nil {
			uc.Log.Warn("approvalUsecase.rescanMissingApprovals invoice rescan failed",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
				zap.Error(err),
			)
		}
	}
}

// rescanInvoice recomputes coverage for the items previously marked missing
// and applies the results. Already-covered items are never recomputed: their
// payer discount is folded into the stored totals, and their committed company
// share seeds the cap accounting so an upgrade cannot push a category or the
// visit past its budget.
func (uc *approvalUsecase) rescanInvoice(ctx context.Context, invoice *models.Invoice, company *models.Company, patient *models.Patient, approval *models.Approval, now time.Time) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	approvals, err := uc.ApprovalRepository.FindByPatientAndCompany(ctx, invoice.PatientID, company.ID)
	if err != nil {
		return err
	}

	var conventionCoverage *float64
	if patient.Convention != nil && patient.Convention.CompanyID == company.ID {
		conventionCoverage = patient.Convention.CoveragePercentage
	}

	var missingIdx []int
	var inputs []billing.CoverageItemInput
	spentByCategory := make(map[string]float64)
	spentTotal := 0.0
	for i, item := range invoice.Items {
		if item.ApprovalStatus == models.ApprovalItemMissing {
			missingIdx = append(missingIdx, i)
			inputs = append(inputs, billing.CoverageItemInput{
				Code:     item.Code,
				Category: item.Category,
				Total:    item.Total,
			})
			continue
		}
		spentByCategory[item.Category] += item.CompanyShare
		spentTotal += item.CompanyShare
	}
	if len(missingIdx) == 0 {
		return nil
	}

	result := billing.ComputeCoverage(billing.CoverageInput{
		Items:              inputs,
		Company:            company,
		ConventionCoverage: conventionCoverage,
		Approvals:          approvals,
		SpentByCategory:    spentByCategory,
		SpentTotal:         spentTotal,
		Now:                now,
	})
	if !result.CanApply {
		return fmt.Errorf("contract no longer usable: %v", result.ContractIssues)
	}

	items := make([]models.LineItem, len(invoice.Items))
	copy(items, invoice.Items)
	upgraded := make(map[string]int)
	var upgradedIdx []int
	for pos, i := range missingIdx {
		itemResult := result.Items[pos]
		if itemResult.ApprovalStatus != models.ApprovalItemApproved {
			continue
		}
		if itemResult.EffectivePrice < items[i].Total {
			items[i].Discount += items[i].Total - itemResult.EffectivePrice
			items[i].Total = itemResult.EffectivePrice
		}
		items[i].CoveragePercentage = itemResult.CoveragePercentage
		items[i].CompanyShare = itemResult.CompanyShare
		items[i].PatientShare = itemResult.PatientShare
		items[i].ApprovalStatus = models.ApprovalItemApproved
		items[i].ApprovalID = itemResult.ApprovalID
		upgraded[itemResult.ApprovalID] += items[i].Quantity
		upgradedIdx = append(upgradedIdx, i)
	}
	if len(upgraded) == 0 {
		return nil
	}

	if err := invoice.ApplyCoverage(items, company.ID, invoice.Warnings, now); err != nil {
		return err
	}

	budgetEntries := upgradedBudgetEntries(invoice, company.ID, upgradedIdx, now)

	_, err = uc.TransactionManager.WithTransaction(ctx, func(sessCtx context.Context) (interface{}, error) {
		for i := range approvals {
			quantity, ok := upgraded[approvals[i].ID]
			if !ok {
				continue
			}
			if useErr := approvals[i].Use(invoice.ID, quantity, now); useErr != nil {
				return nil, useErr
			}
			if updateErr := uc.ApprovalRepository.UpdateApproval(sessCtx, &approvals[i]); updateErr != nil {
				return nil, updateErr
			}
		}
		if updateErr := uc.InvoiceRepository.UpdateInvoice(sessCtx, invoice); updateErr != nil {
			return nil, updateErr
		}
		if insertErr := uc.CompanyBudgetRepository.CreateEntries(sessCtx, budgetEntries); insertErr != nil {
			return nil, insertErr
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	if publishErr := uc.EventPublisher.Publish(ctx, contracts.LiveEvent{
		Type:      "invoice.coverage_rescanned",
		InvoiceID: invoice.ID,
		PatientID: invoice.PatientID,
	}); publishErr != nil {
		uc.Log.Warn("approvalUsecase.rescanInvoice live event publish failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
			zap.Error(publishErr),
		)
	}
	return nil
}

func hasMissingItemFor(invoice *models.Invoice, actCode string) bool {
	for _, item := range invoice.Items {
		if item.ApprovalStatus == models.ApprovalItemMissing && item.Code == actCode {
			return true
		}
	}
	return false
}

// upgradedBudgetEntries records only the company share added by the rescan:
// entries for the untouched items were written when coverage was applied.
func upgradedBudgetEntries(invoice *models.Invoice, companyID string, upgradedIdx []int, now time.Time) []models.CompanyBudgetEntry {
	perCategory := make(map[string]float64)
	var order []string
	for _, i := range upgradedIdx {
		item := invoice.Items[i]
		if item.CompanyShare <= 0 {
			continue
		}
		if _, seen := perCategory[item.Category]; !seen {
			order = append(order, item.Category)
		}
		perCategory[item.Category] += item.CompanyShare
	}
	entries := make([]models.CompanyBudgetEntry, 0, len(order))
	for _, category := range order {
		entries = append(entries, models.CompanyBudgetEntry{
			CompanyID: companyID,
			InvoiceID: invoice.ID,
			PatientID: invoice.PatientID,
			Category:  category,
			Amount:    perCategory[category],
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return entries
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
