package responses

import (
	"medflow-service/internal/app/models"
	"time"
)

type ApprovalResponse struct {
	ID               string     `json:"id"`
	PatientID        string     `json:"patientId"`
	CompanyID        string     `json:"companyId"`
	ActCode          string     `json:"actCode"`
	Status           string     `json:"status"`
	QuantityApproved int        `json:"quantityApproved"`
	UsedCount        int        `json:"usedCount"`
	ApprovedAmount   float64    `json:"approvedAmount,omitempty"`
	ValidFrom        *time.Time `json:"validFrom,omitempty"`
	ValidUntil       *time.Time `json:"validUntil,omitempty"`
	RejectReason     string     `json:"rejectReason,omitempty"`
}

func NewApprovalResponse(approval *models.Approval, now time.Time) *ApprovalResponse {
	return &ApprovalResponse{
		ID:               approval.ID,
		PatientID:        approval.PatientID,
		CompanyID:        approval.CompanyID,
		ActCode:          approval.ActCode,
		Status:           string(approval.EffectiveStatus(now)),
		QuantityApproved: approval.QuantityApproved,
		UsedCount:        approval.UsedCount,
		ApprovedAmount:   approval.ApprovedAmount,
		ValidFrom:        approval.ValidFrom,
		ValidUntil:       approval.ValidUntil,
		RejectReason:     approval.RejectReason,
	}
}

type CheckApprovalResponse struct {
	Valid     bool   `json:"valid"`
	Status    string `json:"status"`
	Remaining int    `json:"remaining"`
}
