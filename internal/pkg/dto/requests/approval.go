package requests

type RequestApprovalRequest struct {
	PatientID string `json:"patientId" validate:"required"`
	CompanyID string `json:"companyId" validate:"required"`
	ActCode   string `json:"actCode" validate:"required"`
}

type ApproveApprovalRequest struct {
	QuantityApproved int     `json:"quantityApproved" validate:"required,gte=1"`
	ApprovedAmount   float64 `json:"approvedAmount" validate:"gte=0"`
	ValidFrom        string  `json:"validFrom,omitempty"`
	ValidUntil       string  `json:"validUntil,omitempty"`
}

type RejectApprovalRequest struct {
	Reason string `json:"reason" validate:"required"`
}
