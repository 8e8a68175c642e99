package payments

import (
	"context"
	"fmt"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/constvars"
	"time"

	"go.uber.org/zap"
)

// reverseConventionSideEffects releases approval quota and reverses payer
// budget entries once the invoice is fully unwound. Runs inside the same
// transaction as the invoice update.
func (uc *paymentUsecase) reverseConventionSideEffects(ctx context.Context, invoice *models.Invoice, now time.Time) error {
	released := make(map[string]int)
	for _, item := range invoice.Items {
		if item.ApprovalStatus == models.ApprovalItemApproved && item.ApprovalID != "" {
			released[item.ApprovalID] += item.Quantity
		}
	}
	for approvalID, quantity := range released {
		approval, err := uc.ApprovalRepository.FindByID(ctx, approvalID)
		if err != nil {
			return err
		}
		if approval == nil {
			continue
		}
		approval.ReleaseUse(invoice.ID, quantity, now)
		if err := uc.ApprovalRepository.UpdateApproval(ctx, approval); err != nil {
			return err
		}
	}

	entries, err := uc.CompanyBudgetRepository.FindActiveByInvoice(ctx, invoice.ID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		entryIDs := make([]string, 0, len(entries))
		for _, entry := range entries {
			entryIDs = append(entryIDs, entry.ID)
		}
		if err := uc.CompanyBudgetRepository.MarkReversed(ctx, entryIDs); err != nil {
			return err
		}
	}
	return nil
}

// reverseFulfillment unwinds downstream records after a full refund or a
// cancellation. The branching follows how far the real world has moved:
// unstarted work is cancelled, started work is flagged for the finance desk,
// completed work keeps only a refund mark.
func (uc *paymentUsecase) reverseFulfillment(ctx context.Context, invoice *models.Invoice, reason string, now time.Time) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	cases, err := uc.SurgeryCaseRepository.FindByInvoice(ctx, invoice.ID)
	if err != nil {
		uc.Log.Warn("paymentUsecase.reverseFulfillment could not list surgery cases",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingInvoiceIDKey, invoice.ID),
			zap.Error(err),
		)
	}
	for i := range cases {
		surgeryCase := &cases[i]
		if surgeryCase.Status == models.SurgeryCaseCancelled {
			continue
		}
		note := fmt.Sprintf("payment reversed: %s", reason)
		switch {
		case surgeryCase.Status == models.SurgeryCaseAwaitingScheduling:
			surgeryCase.Status = models.SurgeryCaseCancelled
			surgeryCase.PaymentStatus = string(models.ServiceOrderRefunded)
		case surgeryCase.Status == models.SurgeryCaseCompleted:
			surgeryCase.PaymentStatus = string(models.ServiceOrderRefunded)
		default:
			// Scheduled or checked in: never auto-cancel booked work, flag
			// it for manual follow-up instead.
			surgeryCase.PaymentIssue = true
			surgeryCase.IssueNote = note
			surgeryCase.PaymentStatus = string(models.ServiceOrderRefunded)
		}
		surgeryCase.UpdatedAt = now
		if updateErr := uc.SurgeryCaseRepository.UpdateSurgeryCase(ctx, surgeryCase); updateErr != nil {
			uc.Log.Warn("paymentUsecase.reverseFulfillment surgery case update failed",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingCaseIDKey, surgeryCase.ID),
				zap.Error(updateErr),
			)
		}
		if surgeryCase.PaymentIssue {
			if notifyErr := uc.NotificationService.Notify(ctx, contracts.Notification{
				Topic:   "surgery.payment_issue",
				Message: fmt.Sprintf("surgery case %s flagged: %s", surgeryCase.ID, note),
				Payload: map[string]interface{}{"caseId": surgeryCase.ID, "invoiceId": invoice.ID},
			}); notifyErr != nil {
				uc.Log.Warn("paymentUsecase.reverseFulfillment notification failed",
					zap.String(constvars.LoggingRequestIDKey, requestID),
					zap.String(constvars.LoggingCaseIDKey, surgeryCase.ID),
					zap.Error(notifyErr),
				)
			}
		}
	}

	for _, item := range invoice.Items {
		if item.ServiceRef == nil || item.ServiceRef.Kind == models.ServiceRefSurgery || item.ServiceRef.OrderID == "" {
			continue
		}
		uc.reverseServiceOrder(ctx, item.ServiceRef.OrderID, reason)
	}
}

func (uc *paymentUsecase) reverseServiceOrder(ctx context.Context, orderID, reason string) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	order, err := uc.ServiceOrderRepository.FindByID(ctx, orderID)
	if err != nil || order == nil {
		uc.Log.Warn("paymentUsecase.reverseServiceOrder order lookup failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingOrderIDKey, orderID),
			zap.Error(err),
		)
		return
	}

	switch order.Stage {
	case models.ServiceOrderStagePending:
		if cancelErr := uc.ServiceOrderRepository.CancelOrder(ctx, orderID); cancelErr != nil {
			uc.Log.Warn("paymentUsecase.reverseServiceOrder cancel failed",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingOrderIDKey, orderID),
				zap.Error(cancelErr),
			)
			return
		}
	case models.ServiceOrderStageInProgress:
		if issueErr := uc.ServiceOrderRepository.SetPaymentIssue(ctx, orderID, fmt.Sprintf("payment reversed: %s", reason)); issueErr != nil {
			uc.Log.Warn("paymentUsecase.reverseServiceOrder issue flag failed",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String(constvars.LoggingOrderIDKey, orderID),
				zap.Error(issueErr),
			)
			return
		}
	}
	if statusErr := uc.ServiceOrderRepository.SetPaymentStatus(ctx, orderID, models.ServiceOrderRefunded); statusErr != nil {
		uc.Log.Warn("paymentUsecase.reverseServiceOrder refund mark failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingOrderIDKey, orderID),
			zap.Error(statusErr),
		)
	}
}
