package contracts

import (
	"context"
	"medflow-service/internal/app/models"
)

type ServiceOrderRepository interface {
	FindByID(ctx context.Context, orderID string) (*models.ServiceOrder, error)
	// SetPaymentStatus is the minimal update contract billing holds over
	// pharmacy/optical/lab records: a document ID and a status to set.
	SetPaymentStatus(ctx context.Context, orderID string, status models.ServiceOrderPaymentStatus) error
	SetPaymentIssue(ctx context.Context, orderID string, note string) error
	CancelOrder(ctx context.Context, orderID string) error
	RequestExternalDispatch(ctx context.Context, orderID string) error
}
