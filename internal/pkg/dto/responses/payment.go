package responses

// InvoiceConflictState is attached to 409 responses so the caller can resolve
// the conflict without re-reading blindly.
type InvoiceConflictState struct {
	InvoiceID  string  `json:"invoiceId"`
	Version    int64   `json:"version"`
	Status     string  `json:"status"`
	AmountPaid float64 `json:"amountPaid"`
	AmountDue  float64 `json:"amountDue"`
}

type RecordPaymentResponse struct {
	PaymentID      string   `json:"paymentId"`
	InvoiceID      string   `json:"invoiceId"`
	Status         string   `json:"status"`
	Version        int64    `json:"version"`
	AmountPaid     float64  `json:"amountPaid"`
	AmountDue      float64  `json:"amountDue"`
	NewlyPaidItems []string `json:"newlyPaidItems,omitempty"`
	FullySettled   bool     `json:"fullySettled"`
}

type IssueRefundResponse struct {
	RefundID   string  `json:"refundId"`
	InvoiceID  string  `json:"invoiceId"`
	Status     string  `json:"status"`
	Version    int64   `json:"version"`
	AmountPaid float64 `json:"amountPaid"`
	AmountDue  float64 `json:"amountDue"`
}

type CancelInvoiceResponse struct {
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
}
