package contracts

import (
	"context"
	"medflow-service/internal/app/models"
)

type SurgeryCaseRepository interface {
	FindByInvoiceAndItem(ctx context.Context, invoiceID, itemCode string) (*models.SurgeryCase, error)
	FindByInvoice(ctx context.Context, invoiceID string) ([]models.SurgeryCase, error)
	CreateSurgeryCase(ctx context.Context, surgeryCase *models.SurgeryCase) (string, error)
	UpdateSurgeryCase(ctx context.Context, surgeryCase *models.SurgeryCase) error
}
