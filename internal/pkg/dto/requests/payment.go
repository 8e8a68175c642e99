package requests

type AllocationRequest struct {
	ItemIndex int     `json:"itemIndex" validate:"gte=0"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
}

type RecordPaymentRequest struct {
	Amount          float64             `json:"amount" validate:"required,gt=0"`
	Currency        string              `json:"currency"`
	Method          string              `json:"method" validate:"required"`
	Reference       string              `json:"reference"`
	ExpectedVersion *int64              `json:"expectedVersion,omitempty"`
	Allocations     []AllocationRequest `json:"allocations,omitempty" validate:"omitempty,dive"`
}

type IssueRefundRequest struct {
	PaymentID       string  `json:"paymentId" validate:"required"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	Reason          string  `json:"reason" validate:"required"`
	Method          string  `json:"method"`
	ExpectedVersion *int64  `json:"expectedVersion,omitempty"`
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason" validate:"required"`
}
