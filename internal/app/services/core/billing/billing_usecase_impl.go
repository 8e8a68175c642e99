package billing

import (
	"context"
	"fmt"
	"medflow-service/internal/app/config"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/dto/requests"
	"medflow-service/internal/pkg/dto/responses"
	"medflow-service/internal/pkg/exceptions"
	"sync"
	"time"

	"go.uber.org/zap"
)

type billingUsecase struct {
	InvoiceRepository       contracts.InvoiceRepository
	CompanyRepository       contracts.CompanyRepository
	PatientRepository       contracts.PatientRepository
	ApprovalRepository      contracts.ApprovalRepository
	CompanyBudgetRepository contracts.CompanyBudgetRepository
	CurrencyService         contracts.CurrencyService
	LockerService           contracts.LockerService
	EventPublisher          contracts.EventPublisher
	TransactionManager      contracts.TransactionManager
	InternalConfig          *config.InternalConfig
	Log                     *zap.Logger
}

var (
	billingUsecaseInstance contracts.BillingUsecase
	onceBillingUsecase     sync.Once
)

func NewBillingUsecase(
	invoiceRepository contracts.InvoiceRepository,
	companyRepository contracts.CompanyRepository,
	patientRepository contracts.PatientRepository,
	approvalRepository contracts.ApprovalRepository,
	companyBudgetRepository contracts.CompanyBudgetRepository,
	currencyService contracts.CurrencyService,
	lockerService contracts.LockerService,
	eventPublisher contracts.EventPublisher,
	transactionManager contracts.TransactionManager,
	internalConfig *config.InternalConfig,
	logger *zap.Logger,
) contracts.BillingUsecase {
	onceBillingUsecase.Do(func() {
		billingUsecaseInstance = &billingUsecase{
			InvoiceRepository:       invoiceRepository,
			CompanyRepository:       companyRepository,
			PatientRepository:       patientRepository,
			ApprovalRepository:      approvalRepository,
			CompanyBudgetRepository: companyBudgetRepository,
			CurrencyService:         currencyService,
			LockerService:           lockerService,
			EventPublisher:          eventPublisher,
			TransactionManager:      transactionManager,
			InternalConfig:          internalConfig,
			Log:                     logger,
		}
	})
	return billingUsecaseInstance
}

func (uc *billingUsecase) PreviewCoverage(ctx context.Context, request *requests.CoveragePreviewRequest) (*responses.CoveragePreviewResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("billingUsecase.PreviewCoverage called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingPatientIDKey, request.PatientID),
		zap.String(constvars.LoggingCompanyIDKey, request.CompanyID),
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

	items := buildLineItems(request.Items)
	bundle := BundlePackages(items, company.Packages)

	approvals, err := uc.ApprovalRepository.FindByPatientAndCompany(ctx, request.PatientID, request.CompanyID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	refRate, rateWarning := uc.referenceRate(ctx, requestID)

	result := ComputeCoverage(CoverageInput{
		Items:              coverageInputs(bundle.Items),
		Company:            company,
		ConventionCoverage: conventionCoverage(patient, company.ID),
		Approvals:          approvals,
		ReferenceRate:      refRate,
		Now:                now,
	})
	if rateWarning != "" {
		result.Warnings = append(result.Warnings, rateWarning)
	}

	response := &responses.CoveragePreviewResponse{
		CanApply:          result.CanApply,
		ContractIssues:    result.ContractIssues,
		TotalCompanyShare: result.TotalCompanyShare,
		TotalPatientShare: result.TotalPatientShare,
		Warnings:          result.Warnings,
		PackagesApplied:   appliedPackageResponses(bundle.Applied),
		OriginalItems:     bundle.Originals,
	}
	for i, itemResult := range result.Items {
		itemResponse := responses.CoverageItemResponse{
			Code:               itemResult.Code,
			Category:           itemResult.Category,
			Total:              itemResult.Total,
			EffectivePrice:     itemResult.EffectivePrice,
			CoveragePercentage: itemResult.CoveragePercentage,
			CompanyShare:       itemResult.CompanyShare,
			PatientShare:       itemResult.PatientShare,
			ApprovalStatus:     string(itemResult.ApprovalStatus),
			ApprovalID:         itemResult.ApprovalID,
		}
		if i < len(bundle.Items) && bundle.Items[i].IsPackage {
			itemResponse.IsPackage = true
			itemResponse.Savings = bundle.Items[i].Package.Savings
		}
		response.Items = append(response.Items, itemResponse)
	}

	uc.Log.Info("billingUsecase.PreviewCoverage computed",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.Bool("can_apply", result.CanApply),
		zap.Float64("company_share", result.TotalCompanyShare),
		zap.Float64("patient_share", result.TotalPatientShare),
	)
	return response, nil
}

func (uc *billingUsecase) ApplyConvention(ctx context.Context, invoiceID string, request *requests.ApplyConventionRequest) (*responses.ApplyConventionResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("billingUsecase.ApplyConvention called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoiceID),
		zap.String(constvars.LoggingCompanyIDKey, request.CompanyID),
	)

	invoice, err := uc.InvoiceRepository.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, exceptions.ErrInvoiceNotFound(fmt.Errorf("invoice %s", invoiceID))
	}
	// Payer discounts fold into the stored line totals on apply, so a second
	// pass would discount already-discounted prices. Reapplying requires
	// cancelling and rebuilding the invoice.
	if invoice.ConventionApplied {
		return nil, exceptions.ErrConventionAlreadyApplied(fmt.Errorf("invoice %s already carries convention %s", invoice.ID, invoice.CompanyID))
	}
	company, err := uc.CompanyRepository.FindByID(ctx, request.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, exceptions.ErrCompanyNotFound(fmt.Errorf("company %s", request.CompanyID))
	}
	patient, err := uc.PatientRepository.FindByID(ctx, invoice.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, exceptions.ErrPatientNotFound(fmt.Errorf("patient %s", invoice.PatientID))
	}

	now := time.Now()
	if issues := company.ContractIssues(now); len(issues) > 0 {
		uc.Log.Warn("billingUsecase.ApplyConvention contract not usable",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingCompanyIDKey, company.ID),
			zap.Strings(constvars.LoggingWarningsKey, issues),
		)
		return &responses.ApplyConventionResponse{
			CanApply:       false,
			ContractIssues: issues,
		}, nil
	}

	// Approval consumption is serialized per patient/company pair so two
	// concurrent invoices cannot both consume the last approval quota.
	lockKey := fmt.Sprintf("lock:approvals:%s:%s", invoice.PatientID, company.ID)
	lockTTL := time.Duration(uc.InternalConfig.Billing.ApprovalLockTTLInSeconds) * time.Second
	acquired, lockValue, err := uc.LockerService.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, exceptions.ErrResourceLocked(fmt.Errorf("lock %s held", lockKey))
	}
	defer func() {
		if unlockErr := uc.LockerService.Unlock(ctx, lockKey, lockValue); unlockErr != nil {
			uc.Log.Warn("billingUsecase.ApplyConvention failed to release lock",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingRedisKey, lockKey),
				zap.Error(unlockErr),
			)
		}
	}()

	bundle := BundlePackages(invoice.Items, company.Packages)

	approvals, err := uc.ApprovalRepository.FindByPatientAndCompany(ctx, invoice.PatientID, company.ID)
	if err != nil {
		return nil, err
	}

	refRate, rateWarning := uc.referenceRate(ctx, requestID)
	result := ComputeCoverage(CoverageInput{
		Items:              coverageInputs(bundle.Items),
		Company:            company,
		ConventionCoverage: conventionCoverage(patient, company.ID),
		Approvals:          approvals,
		ReferenceRate:      refRate,
		Now:                now,
	})
	if rateWarning != "" {
		result.Warnings = append(result.Warnings, rateWarning)
	}

	items := make([]models.LineItem, len(bundle.Items))
	copy(items, bundle.Items)
	for i := range items {
		itemResult := result.Items[i]
		// A payer discount folds into the line discount so the share sum
		// always equals the item total.
		if itemResult.EffectivePrice < items[i].Total {
			items[i].Discount += items[i].Total - itemResult.EffectivePrice
			items[i].Total = itemResult.EffectivePrice
		}
		items[i].CoveragePercentage = itemResult.CoveragePercentage
		items[i].CompanyShare = itemResult.CompanyShare
		items[i].PatientShare = itemResult.PatientShare
		items[i].ApprovalStatus = itemResult.ApprovalStatus
		items[i].ApprovalID = itemResult.ApprovalID
	}

	if err := invoice.ApplyCoverage(items, company.ID, result.Warnings, now); err != nil {
		switch err {
		case models.ErrOutstandingPayments:
			return nil, exceptions.ErrInvoiceHasPayments(err)
		default:
			return nil, exceptions.ErrInvoiceNotPayable(err)
		}
	}

	consumed := consumedApprovals(items, approvals)
	budgetEntries := buildBudgetEntries(invoice, company.ID, result, now)

	_, err = uc.TransactionManager.WithTransaction(ctx, func(sessCtx context.Context) (interface{}, error) {
		for _, entry := range consumed {
			if useErr := entry.approval.Use(invoice.ID, entry.quantity, now); useErr != nil {
				return nil, exceptions.ErrApprovalNotUsable(useErr)
			}
			if updateErr := uc.ApprovalRepository.UpdateApproval(sessCtx, entry.approval); updateErr != nil {
				return nil, updateErr
			}
		}
		if updateErr := uc.InvoiceRepository.UpdateInvoice(sessCtx, invoice); updateErr != nil {
			if updateErr == models.ErrStaleVersion {
				return nil, uc.staleVersionError(sessCtx, invoice.ID, updateErr)
			}
			return nil, updateErr
		}
		if insertErr := uc.CompanyBudgetRepository.CreateEntries(sessCtx, budgetEntries); insertErr != nil {
			return nil, insertErr
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	if publishErr := uc.EventPublisher.Publish(ctx, contracts.LiveEvent{
		Type:      "invoice.convention_applied",
		InvoiceID: invoice.ID,
		PatientID: invoice.PatientID,
	}); publishErr != nil {
		uc.Log.Warn("billingUsecase.ApplyConvention live event publish failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
			zap.Error(publishErr),
		)
	}

	uc.Log.Info("billingUsecase.ApplyConvention applied",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
		zap.Int64(constvars.LoggingVersionKey, invoice.Version),
		zap.Float64("company_share", result.TotalCompanyShare),
		zap.Float64("patient_share", result.TotalPatientShare),
	)

	return &responses.ApplyConventionResponse{
		CanApply:        true,
		Invoice:         invoice,
		Warnings:        result.Warnings,
		PackagesApplied: appliedPackageResponses(bundle.Applied),
	}, nil
}

func (uc *billingUsecase) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("billingUsecase.GetInvoice called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoiceID),
	)

	invoice, err := uc.InvoiceRepository.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, exceptions.ErrInvoiceNotFound(fmt.Errorf("invoice %s", invoiceID))
	}
	return invoice, nil
}

// referenceRate resolves the ledger-to-reference rate used by approval
// thresholds. The rate is advisory, so a lookup failure degrades to 1:1 with
// a warning instead of failing the whole computation.
func (uc *billingUsecase) referenceRate(ctx context.Context, requestID string) (float64, string) {
	ledger := uc.InternalConfig.Billing.LedgerCurrency
	reference := uc.InternalConfig.Billing.ReferenceCurrency
	if ledger == reference {
		return 1, ""
	}
	rate, err := uc.CurrencyService.Rate(ctx, ledger, reference)
	if err != nil {
		uc.Log.Warn("billingUsecase reference rate unavailable, thresholds compared 1:1",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingCurrencyKey, fmt.Sprintf("%s_%s", ledger, reference)),
			zap.Error(err),
		)
		return 1, fmt.Sprintf("reference rate %s/%s unavailable: approval thresholds compared at face value", ledger, reference)
	}
	return rate, ""
}

func buildLineItems(itemRequests []requests.BillingItemRequest) []models.LineItem {
	items := make([]models.LineItem, 0, len(itemRequests))
	for _, ir := range itemRequests {
		item := models.LineItem{
			Code:                ir.Code,
			Description:         ir.Description,
			Category:            ir.Category,
			Quantity:            ir.Quantity,
			UnitPrice:           ir.UnitPrice,
			Discount:            ir.Discount,
			Tax:                 ir.Tax,
			ExternalFulfillment: ir.ExternalFulfillment,
		}
		if ir.ServiceRef != nil {
			item.ServiceRef = &models.ServiceReference{
				Kind:    models.ServiceRefKind(ir.ServiceRef.Kind),
				OrderID: ir.ServiceRef.OrderID,
			}
		}
		item.ComputeTotal()
		items = append(items, item)
	}
	return items
}

func coverageInputs(items []models.LineItem) []CoverageItemInput {
	inputs := make([]CoverageItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, CoverageItemInput{
			Code:     item.Code,
			Category: item.Category,
			Total:    item.Total,
		})
	}
	return inputs
}

func conventionCoverage(patient *models.Patient, companyID string) *float64 {
	if patient.Convention != nil && patient.Convention.CompanyID == companyID {
		return patient.Convention.CoveragePercentage
	}
	return nil
}

func appliedPackageResponses(applied []AppliedPackage) []responses.PackageAppliedResponse {
	out := make([]responses.PackageAppliedResponse, 0, len(applied))
	for _, pkg := range applied {
		out = append(out, responses.PackageAppliedResponse{
			Name:         pkg.Name,
			Price:        pkg.Price,
			ConsumedActs: pkg.ConsumedActs,
			Savings:      pkg.Savings,
		})
	}
	return out
}

type approvalConsumption struct {
	approval *models.Approval
	quantity int
}

// consumedApprovals aggregates item-level approval matches into one Use call
// per approval.
func consumedApprovals(items []models.LineItem, approvals []models.Approval) []approvalConsumption {
	counts := make(map[string]int)
	for _, item := range items {
		if item.ApprovalStatus == models.ApprovalItemApproved && item.ApprovalID != "" {
			counts[item.ApprovalID] += item.Quantity
		}
	}
	var consumed []approvalConsumption
	for i := range approvals {
		if quantity, ok := counts[approvals[i].ID]; ok {
			consumed = append(consumed, approvalConsumption{approval: &approvals[i], quantity: quantity})
		}
	}
	return consumed
}

func buildBudgetEntries(invoice *models.Invoice, companyID string, result CoverageResult, now time.Time) []models.CompanyBudgetEntry {
	perCategory := make(map[string]float64)
	var order []string
	for _, item := range result.Items {
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

// staleVersionError reports the authoritative invoice state alongside the
// 409 so the caller can resolve the conflict without a second round trip.
func (uc *billingUsecase) staleVersionError(ctx context.Context, invoiceID string, cause error) error {
	customErr := exceptions.ErrStaleInvoiceVersion(cause)
	current, findErr := uc.InvoiceRepository.FindByID(ctx, invoiceID)
	if findErr == nil && current != nil {
		return customErr.WithConflict(invoiceConflictState(current))
	}
	return customErr
}

func invoiceConflictState(invoice *models.Invoice) responses.InvoiceConflictState {
	return responses.InvoiceConflictState{
		InvoiceID:  invoice.ID,
		Version:    invoice.Version,
		Status:     string(invoice.Status),
		AmountPaid: invoice.Summary.AmountPaid,
		AmountDue:  invoice.Summary.AmountDue,
	}
}
