package models

import "time"

type ServiceOrderPaymentStatus string

const (
	ServiceOrderUnpaid   ServiceOrderPaymentStatus = "unpaid"
	ServiceOrderPaid     ServiceOrderPaymentStatus = "paid"
	ServiceOrderRefunded ServiceOrderPaymentStatus = "refunded"
)

// ServiceOrder is the minimal contract billing holds over pharmacy, optical
// and lab records: an ID, a lifecycle stage and a payment status to set.
type ServiceOrder struct {
	ID                        string                    `bson:"_id,omitempty" json:"id"`
	Kind                      ServiceRefKind            `bson:"kind" json:"kind"`
	PatientID                 string                    `bson:"patientId" json:"patientId"`
	Stage                     string                    `bson:"stage" json:"stage"`
	PaymentStatus             ServiceOrderPaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	PaymentIssue              bool                      `bson:"paymentIssue" json:"paymentIssue"`
	IssueNote                 string                    `bson:"issueNote,omitempty" json:"issueNote,omitempty"`
	ExternalDispatchRequested bool                      `bson:"externalDispatchRequested,omitempty" json:"externalDispatchRequested,omitempty"`
	UpdatedAt                 time.Time                 `bson:"updatedAt" json:"updatedAt"`
}

// Order stages shared across pharmacy/optical/lab collaborators.
const (
	ServiceOrderStagePending    = "pending"
	ServiceOrderStageInProgress = "in_progress"
	ServiceOrderStageCompleted  = "completed"
	ServiceOrderStageCancelled  = "cancelled"
)
