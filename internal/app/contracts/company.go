package contracts

import (
	"context"
	"medflow-service/internal/app/models"
)

type CompanyRepository interface {
	FindByID(ctx context.Context, companyID string) (*models.Company, error)
}

type CompanyBudgetRepository interface {
	CreateEntries(ctx context.Context, entries []models.CompanyBudgetEntry) error
	FindActiveByInvoice(ctx context.Context, invoiceID string) ([]models.CompanyBudgetEntry, error)
	MarkReversed(ctx context.Context, entryIDs []string) error
}
