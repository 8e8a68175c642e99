package contracts

import (
	"context"
	"medflow-service/internal/app/models"
)

type InvoiceRepository interface {
	FindByID(ctx context.Context, invoiceID string) (*models.Invoice, error)
	// FindOpenByPatientAndCompany returns non-terminal invoices for the
	// approval rescan: anything not cancelled, voided or fully refunded.
	FindOpenByPatientAndCompany(ctx context.Context, patientID, companyID string) ([]models.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) (string, error)
	// UpdateInvoice persists the aggregate guarded by its version counter:
	// the filter matches version-1 so a concurrent writer loses the race and
	// gets models.ErrStaleVersion instead of silently overwriting.
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
}
