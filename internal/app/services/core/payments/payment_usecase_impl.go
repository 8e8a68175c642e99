package payments

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
	"medflow-service/internal/pkg/utils"
	"sync"
	"time"

	"go.uber.org/zap"
)

type paymentUsecase struct {
	InvoiceRepository       contracts.InvoiceRepository
	ApprovalRepository      contracts.ApprovalRepository
	CompanyBudgetRepository contracts.CompanyBudgetRepository
	SurgeryCaseRepository   contracts.SurgeryCaseRepository
	ServiceOrderRepository  contracts.ServiceOrderRepository
	CurrencyService         contracts.CurrencyService
	EventPublisher          contracts.EventPublisher
	NotificationService     contracts.NotificationService
	TransactionManager      contracts.TransactionManager
	InternalConfig          *config.InternalConfig
	Log                     *zap.Logger
}

var (
	paymentUsecaseInstance contracts.PaymentUsecase
	oncePaymentUsecase     sync.Once
)

func NewPaymentUsecase(
	invoiceRepository contracts.InvoiceRepository,
	approvalRepository contracts.ApprovalRepository,
	companyBudgetRepository contracts.CompanyBudgetRepository,
	surgeryCaseRepository contracts.SurgeryCaseRepository,
	serviceOrderRepository contracts.ServiceOrderRepository,
	currencyService contracts.CurrencyService,
	eventPublisher contracts.EventPublisher,
	notificationService contracts.NotificationService,
	transactionManager contracts.TransactionManager,
	internalConfig *config.InternalConfig,
	logger *zap.Logger,
) contracts.PaymentUsecase {
	oncePaymentUsecase.Do(func() {
		paymentUsecaseInstance = &paymentUsecase{
			InvoiceRepository:       invoiceRepository,
			ApprovalRepository:      approvalRepository,
			CompanyBudgetRepository: companyBudgetRepository,
			SurgeryCaseRepository:   surgeryCaseRepository,
			ServiceOrderRepository:  serviceOrderRepository,
			CurrencyService:         currencyService,
			EventPublisher:          eventPublisher,
			NotificationService:     notificationService,
			TransactionManager:      transactionManager,
			InternalConfig:          internalConfig,
			Log:                     logger,
		}
	})
	return paymentUsecaseInstance
}

func (uc *paymentUsecase) RecordPayment(ctx context.Context, invoiceID string, request *requests.RecordPaymentRequest) (*responses.RecordPaymentResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("paymentUsecase.RecordPayment called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoiceID),
		zap.Float64(constvars.LoggingAmountKey, request.Amount),
		zap.String(constvars.LoggingReferenceKey, request.Reference),
	)

	ledgerCurrency := uc.InternalConfig.Billing.LedgerCurrency
	currency := request.Currency
	if currency == "" {
		currency = ledgerCurrency
	}
	rate := 1.0
	if currency != ledgerCurrency {
		var err error
		rate, err = uc.CurrencyService.Rate(ctx, currency, ledgerCurrency)
		if err != nil {
			return nil, err
		}
	}

	reference := request.Reference
	if reference == "" {
		reference = utils.GeneratePaymentReference()
	}
	allocations := make([]models.ItemAllocation, 0, len(request.Allocations))
	for _, alloc := range request.Allocations {
		allocations = append(allocations, models.ItemAllocation{
			ItemIndex: alloc.ItemIndex,
			Amount:    alloc.Amount,
		})
	}

	author := utils.AuthorFromContext(ctx)
	now := time.Now()

	var invoice *models.Invoice
	var paymentResult *models.PaymentResult
	_, err := uc.TransactionManager.WithTransaction(ctx, func(sessCtx context.Context) (interface{}, error) {
		// Fresh read per attempt so a transient retry never replays against
		// stale state.
		fresh, findErr := uc.InvoiceRepository.FindByID(sessCtx, invoiceID)
		if findErr != nil {
			return nil, findErr
		}
		if fresh == nil {
			return nil, exceptions.ErrInvoiceNotFound(fmt.Errorf("invoice %s", invoiceID))
		}

		result, applyErr := fresh.ApplyPayment(models.PaymentInput{
			Amount:          request.Amount,
			Currency:        currency,
			ExchangeRate:    rate,
			Method:          request.Method,
			Reference:       reference,
			Allocations:     allocations,
			ExpectedVersion: request.ExpectedVersion,
			Author:          author,
			Now:             now,
		})
		if applyErr != nil {
			return nil, mapLedgerError(applyErr, fresh)
		}
		if updateErr := uc.InvoiceRepository.UpdateInvoice(sessCtx, fresh); updateErr != nil {
			if updateErr == models.ErrStaleVersion {
				return nil, exceptions.ErrStaleInvoiceVersion(updateErr)
			}
			return nil, updateErr
		}

		// Surgery cases ride the same transaction: a settled surgical act
		// must never exist without its case. Creation is idempotent on
		// (invoiceId, itemCode).
		for _, idx := range result.NewlyPaidItems {
			item := fresh.Items[idx]
			if !isSurgical(item) {
				continue
			}
			if caseErr := uc.ensureSurgeryCase(sessCtx, fresh, item, now); caseErr != nil {
				return nil, caseErr
			}
		}

		invoice = fresh
		paymentResult = result
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	uc.syncServiceOrders(ctx, invoice, paymentResult)

	if publishErr := uc.EventPublisher.Publish(ctx, contracts.LiveEvent{
		Type:      "invoice.payment_recorded",
		InvoiceID: invoice.ID,
		PatientID: invoice.PatientID,
	}); publishErr != nil {
		uc.Log.Warn("paymentUsecase.RecordPayment live event publish failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
			zap.Error(publishErr),
		)
	}
	if paymentResult.FullySettled {
		if notifyErr := uc.NotificationService.Notify(ctx, contracts.Notification{
			Topic:   "invoice.settled",
			Message: fmt.Sprintf("invoice %s fully settled", invoice.ID),
			Payload: map[string]interface{}{"invoiceId": invoice.ID, "patientId": invoice.PatientID},
		}); notifyErr != nil {
			uc.Log.Warn("paymentUsecase.RecordPayment settlement notification failed",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
				zap.Error(notifyErr),
			)
		}
	}

	uc.Log.Info("paymentUsecase.RecordPayment recorded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
		zap.String(constvars.LoggingPaymentIDKey, paymentResult.Payment.ID),
		zap.Int64(constvars.LoggingVersionKey, invoice.Version),
		zap.Bool("fully_settled", paymentResult.FullySettled),
	)

	return &responses.RecordPaymentResponse{
		PaymentID:      paymentResult.Payment.ID,
		InvoiceID:      invoice.ID,
		Status:         string(invoice.Status),
		Version:        invoice.Version,
		AmountPaid:     invoice.Summary.AmountPaid,
		AmountDue:      invoice.Summary.AmountDue,
		NewlyPaidItems: itemCodes(invoice, paymentResult.NewlyPaidItems),
		FullySettled:   paymentResult.FullySettled,
	}, nil
}

func (uc *paymentUsecase) IssueRefund(ctx context.Context, invoiceID string, request *requests.IssueRefundRequest) (*responses.IssueRefundResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("paymentUsecase.IssueRefund called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoiceID),
		zap.String(constvars.LoggingPaymentIDKey, request.PaymentID),
		zap.Float64(constvars.LoggingAmountKey, request.Amount),
	)

	author := utils.AuthorFromContext(ctx)
	now := time.Now()

	var invoice *models.Invoice
	var refund *models.Refund
	_, err := uc.TransactionManager.WithTransaction(ctx, func(sessCtx context.Context) (interface{}, error) {
		fresh, findErr := uc.InvoiceRepository.FindByID(sessCtx, invoiceID)
		if findErr != nil {
			return nil, findErr
		}
		if fresh == nil {
			return nil, exceptions.ErrInvoiceNotFound(fmt.Errorf("invoice %s", invoiceID))
		}

		issued, refundErr := fresh.IssueRefund(models.RefundInput{
			PaymentID:       request.PaymentID,
			Amount:          request.Amount,
			Reason:          request.Reason,
			Method:          request.Method,
			ExpectedVersion: request.ExpectedVersion,
			Author:          author,
			Now:             now,
		})
		if refundErr != nil {
			return nil, mapLedgerError(refundErr, fresh)
		}
		if updateErr := uc.InvoiceRepository.UpdateInvoice(sessCtx, fresh); updateErr != nil {
			if updateErr == models.ErrStaleVersion {
				return nil, exceptions.ErrStaleInvoiceVersion(updateErr)
			}
			return nil, updateErr
		}

		if fresh.FullyRefunded() {
			if reverseErr := uc.reverseConventionSideEffects(sessCtx, fresh, now); reverseErr != nil {
				return nil, reverseErr
			}
		}

		invoice = fresh
		refund = issued
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	if invoice.FullyRefunded() {
		uc.reverseFulfillment(ctx, invoice, request.Reason, now)
	}

	if publishErr := uc.EventPublisher.Publish(ctx, contracts.LiveEvent{
		Type:      "invoice.refund_issued",
		InvoiceID: invoice.ID,
		PatientID: invoice.PatientID,
	}); publishErr != nil {
		uc.Log.Warn("paymentUsecase.IssueRefund live event publish failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
			zap.Error(publishErr),
		)
	}

	uc.Log.Info("paymentUsecase.IssueRefund issued",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
		zap.String(constvars.LoggingRefundIDKey, refund.ID),
		zap.Int64(constvars.LoggingVersionKey, invoice.Version),
	)

	return &responses.IssueRefundResponse{
		RefundID:   refund.ID,
		InvoiceID:  invoice.ID,
		Status:     string(invoice.Status),
		Version:    invoice.Version,
		AmountPaid: invoice.Summary.AmountPaid,
		AmountDue:  invoice.Summary.AmountDue,
	}, nil
}

func (uc *paymentUsecase) CancelInvoice(ctx context.Context, invoiceID string, request *requests.CancelInvoiceRequest) (*responses.CancelInvoiceResponse, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	uc.Log.Info("paymentUsecase.CancelInvoice called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingInvoiceIDKey, invoiceID),
		zap.String(constvars.LoggingCancelReasonKey, request.Reason),
	)

	author := utils.AuthorFromContext(ctx)
	now := time.Now()

	var invoice *models.Invoice
	_, err := uc.TransactionManager.WithTransaction(ctx, func(sessCtx context.Context) (interface{}, error) {
		fresh, findErr := uc.InvoiceRepository.FindByID(sessCtx, invoiceID)
		if findErr != nil {
			return nil, findErr
		}
		if fresh == nil {
			return nil, exceptions.ErrInvoiceNotFound(fmt.Errorf("invoice %s", invoiceID))
		}

		if cancelErr := fresh.Cancel(request.Reason, author, now); cancelErr != nil {
			return nil, mapLedgerError(cancelErr, fresh)
		}
		if updateErr := uc.InvoiceRepository.UpdateInvoice(sessCtx, fresh); updateErr != nil {
			if updateErr == models.ErrStaleVersion {
				return nil, exceptions.ErrStaleInvoiceVersion(updateErr)
			}
			return nil, updateErr
		}
		if reverseErr := uc.reverseConventionSideEffects(sessCtx, fresh, now); reverseErr != nil {
			return nil, reverseErr
		}

		invoice = fresh
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	uc.reverseFulfillment(ctx, invoice, request.Reason, now)

	if publishErr := uc.EventPublisher.Publish(ctx, contracts.LiveEvent{
		Type:      "invoice.cancelled",
		InvoiceID: invoice.ID,
		PatientID: invoice.PatientID,
	}); publishErr != nil {
		uc.Log.Warn("paymentUsecase.CancelInvoice live event publish failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
			zap.Error(publishErr),
		)
	}

	return &responses.CancelInvoiceResponse{
		InvoiceID: invoice.ID,
		Status:    string(invoice.Status),
		Version:   invoice.Version,
	}, nil
}

// ensureSurgeryCase creates the downstream surgery case for a settled
// surgical item, keyed on (invoiceId, itemCode).
func (uc *paymentUsecase) ensureSurgeryCase(ctx context.Context, invoice *models.Invoice, item models.LineItem, now time.Time) error {
	existing, err := uc.SurgeryCaseRepository.FindByInvoiceAndItem(ctx, invoice.ID, item.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.PaymentStatus != string(models.ServiceOrderPaid) {
			existing.PaymentStatus = string(models.ServiceOrderPaid)
			existing.UpdatedAt = now
			return uc.SurgeryCaseRepository.UpdateSurgeryCase(ctx, existing)
		}
		return nil
	}
	_, err = uc.SurgeryCaseRepository.CreateSurgeryCase(ctx, &models.SurgeryCase{
		PatientID:     invoice.PatientID,
		InvoiceID:     invoice.ID,
		ItemCode:      item.Code,
		Status:        models.SurgeryCaseAwaitingScheduling,
		PaymentStatus: string(models.ServiceOrderPaid),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return err
}

// syncServiceOrders marks pharmacy, optical and lab orders paid once their
// line item settles. These live outside the payment transaction: the orders
// belong to other modules and a sync failure must not void a real payment.
func (uc *paymentUsecase) syncServiceOrders(ctx context.Context, invoice *models.Invoice, result *models.PaymentResult) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	for _, idx := range result.NewlyPaidItems {
		item := invoice.Items[idx]
		if item.ServiceRef == nil || item.ServiceRef.Kind == models.ServiceRefSurgery || item.ServiceRef.OrderID == "" {
			continue
		}
		orderID := item.ServiceRef.OrderID
		if err := uc.ServiceOrderRepository.SetPaymentStatus(ctx, orderID, models.ServiceOrderPaid); err != nil {
			uc.Log.Warn("paymentUsecase.syncServiceOrders failed to mark order paid",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingOrderIDKey, orderID),
				zap.String(constvars.LoggingItemCodeKey, item.Code),
				zap.Error(err),
			)
			continue
		}
		if item.ServiceRef.Kind == models.ServiceRefOptical && item.ExternalFulfillment && result.FullySettled {
			if err := uc.ServiceOrderRepository.RequestExternalDispatch(ctx, orderID); err != nil {
				uc.Log.Warn("paymentUsecase.syncServiceOrders external dispatch request failed",
					zap.String(constvars.LoggingRequestIDKey, requestID),
					zap.String(constvars.LoggingOrderIDKey, orderID),
					zap.Error(err),
				)
			}
		}
	}
}

// mapLedgerError translates the ledger's sentinel errors into transport-level
// custom errors. Conflict-class errors carry the authoritative invoice state.
func mapLedgerError(err error, invoice *models.Invoice) error {
	conflict := responses.InvoiceConflictState{
		InvoiceID:  invoice.ID,
		Version:    invoice.Version,
		Status:     string(invoice.Status),
		AmountPaid: invoice.Summary.AmountPaid,
		AmountDue:  invoice.Summary.AmountDue,
	}
	switch err {
	case models.ErrNotPayable, models.ErrAlreadyCancelled:
		return exceptions.ErrInvoiceNotPayable(err).WithConflict(conflict)
	case models.ErrDuplicatePaymentReference:
		return exceptions.ErrDuplicatePaymentReference(err).WithConflict(conflict)
	case models.ErrStaleVersion:
		return exceptions.ErrStaleInvoiceVersion(err).WithConflict(conflict)
	case models.ErrAmountExceedsDue:
		return exceptions.ErrAmountExceedsDue(err).WithConflict(conflict)
	case models.ErrRefundExceedsPayment:
		return exceptions.ErrRefundExceedsPayment(err).WithConflict(conflict)
	case models.ErrOutstandingPayments:
		return exceptions.ErrInvoiceHasPayments(err).WithConflict(conflict)
	case models.ErrPaymentNotFound:
		return exceptions.ErrClientCustomMessage(fmt.Errorf("payment not found on invoice %s", invoice.ID))
	case models.ErrInvalidAmount, models.ErrInvalidAllocation:
		return exceptions.ErrClientCustomMessage(err)
	default:
		return err
	}
}

func isSurgical(item models.LineItem) bool {
	if item.ServiceRef != nil {
		return item.ServiceRef.Kind == models.ServiceRefSurgery
	}
	return item.Category == "surgery"
}

func itemCodes(invoice *models.Invoice, indexes []int) []string {
	codes := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		if idx >= 0 && idx < len(invoice.Items) {
			codes = append(codes, invoice.Items[idx].Code)
		}
	}
	return codes
}
