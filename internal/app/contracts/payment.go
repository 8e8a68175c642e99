package contracts

import (
	"context"
	"medflow-service/internal/pkg/dto/requests"
	"medflow-service/internal/pkg/dto/responses"
)

type PaymentUsecase interface {
	RecordPayment(ctx context.Context, invoiceID string, request *requests.RecordPaymentRequest) (*responses.RecordPaymentResponse, error)
	IssueRefund(ctx context.Context, invoiceID string, request *requests.IssueRefundRequest) (*responses.IssueRefundResponse, error)
	CancelInvoice(ctx context.Context, invoiceID string, request *requests.CancelInvoiceRequest) (*responses.CancelInvoiceResponse, error)
}
