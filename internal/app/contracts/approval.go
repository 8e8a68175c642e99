package contracts

import (
	"context"
	"medflow-service/internal/app/models"
)

type ApprovalRepository interface {
	FindByID(ctx context.Context, approvalID string) (*models.Approval, error)
	// FindOpenByTuple returns a pending or approved approval for the
	// (patient, company, actCode) tuple, nil when none exists.
	FindOpenByTuple(ctx context.Context, patientID, companyID, actCode string) (*models.Approval, error)
	FindByPatientAndCompany(ctx context.Context, patientID, companyID string) ([]models.Approval, error)
	CreateApproval(ctx context.Context, approval *models.Approval) (string, error)
	UpdateApproval(ctx context.Context, approval *models.Approval) error
}
