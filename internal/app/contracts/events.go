package contracts

import "context"

// LiveEvent is the fire-and-forget UI refresh signal.
type LiveEvent struct {
	Type      string      `json:"type"`
	InvoiceID string      `json:"invoiceId"`
	PatientID string      `json:"patientId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

type EventPublisher interface {
	// Publish is best-effort: implementations log failures and callers
	// never roll back on a publish error.
	Publish(ctx context.Context, event LiveEvent) error
}

type Notification struct {
	Topic     string      `json:"topic"`
	Recipient string      `json:"recipient,omitempty"`
	Message   string      `json:"message"`
	Payload   interface{} `json:"payload,omitempty"`
}

type NotificationService interface {
	Notify(ctx context.Context, notification Notification) error
}
