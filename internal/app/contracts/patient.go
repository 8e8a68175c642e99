package contracts

import (
	"context"
	"medflow-service/internal/app/models"
)

type PatientRepository interface {
	FindByID(ctx context.Context, patientID string) (*models.Patient, error)
}
