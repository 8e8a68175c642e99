package contracts

import (
	"context"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/dto/requests"
	"medflow-service/internal/pkg/dto/responses"
)

type BillingUsecase interface {
	// PreviewCoverage computes the split without persisting anything.
	PreviewCoverage(ctx context.Context, request *requests.CoveragePreviewRequest) (*responses.CoveragePreviewResponse, error)
	// ApplyConvention bundles and computes coverage for an existing invoice,
	// persists the split, consumes approvals and records payer-budget entries.
	ApplyConvention(ctx context.Context, invoiceID string, request *requests.ApplyConventionRequest) (*responses.ApplyConventionResponse, error)
	GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error)
}
