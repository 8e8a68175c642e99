package models

import "time"

type SurgeryCaseStatus string

const (
	SurgeryCaseAwaitingScheduling SurgeryCaseStatus = "awaiting_scheduling"
	SurgeryCaseScheduled          SurgeryCaseStatus = "scheduled"
	SurgeryCaseCheckedIn          SurgeryCaseStatus = "checked_in"
	SurgeryCaseCompleted          SurgeryCaseStatus = "completed"
	SurgeryCaseCancelled          SurgeryCaseStatus = "cancelled"
)

// SurgeryCase is created when a surgical act is settled. The (invoiceId,
// itemCode) pair is the idempotency key: re-entering the payment transaction
// must not create a second case.
type SurgeryCase struct {
	ID            string            `bson:"_id,omitempty" json:"id"`
	PatientID     string            `bson:"patientId" json:"patientId"`
	InvoiceID     string            `bson:"invoiceId" json:"invoiceId"`
	ItemCode      string            `bson:"itemCode" json:"itemCode"`
	Status        SurgeryCaseStatus `bson:"status" json:"status"`
	PaymentStatus string            `bson:"paymentStatus" json:"paymentStatus"`
	PaymentIssue  bool              `bson:"paymentIssue" json:"paymentIssue"`
	IssueNote     string            `bson:"issueNote,omitempty" json:"issueNote,omitempty"`
	CreatedAt     time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// Started reports whether real-world work has begun; started cases are never
// auto-cancelled by financial reversal.
func (c *SurgeryCase) Started() bool {
	switch c.Status {
	case SurgeryCaseScheduled, SurgeryCaseCheckedIn, SurgeryCaseCompleted:
		return true
	}
	return false
}
