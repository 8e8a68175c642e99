package models

import "time"

// CompanyBudgetEntry records payer-budget consumption at convention
// finalization, one entry per (invoice, category). RefundReversal credits
// these back when the invoice is refunded or cancelled.
type CompanyBudgetEntry struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	CompanyID string    `bson:"companyId" json:"companyId"`
	InvoiceID string    `bson:"invoiceId" json:"invoiceId"`
	PatientID string    `bson:"patientId" json:"patientId"`
	Category  string    `bson:"category" json:"category"`
	Amount    float64   `bson:"amount" json:"amount"`
	Reversed  bool      `bson:"reversed" json:"reversed"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
