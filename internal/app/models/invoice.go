package models

import (
	"errors"
	"time"

	"medflow-service/internal/pkg/money"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusRefunded  InvoiceStatus = "refunded"
	InvoiceStatusVoided    InvoiceStatus = "voided"
)

type ApprovalItemStatus string

const (
	ApprovalItemNotRequired ApprovalItemStatus = "not_required"
	ApprovalItemApproved    ApprovalItemStatus = "approved"
	ApprovalItemMissing     ApprovalItemStatus = "missing"
)

// ServiceRefKind tags a line item with the downstream record it settles.
type ServiceRefKind string

const (
	ServiceRefSurgery  ServiceRefKind = "surgery"
	ServiceRefPharmacy ServiceRefKind = "pharmacy"
	ServiceRefOptical  ServiceRefKind = "optical"
	ServiceRefLab      ServiceRefKind = "lab"
)

var (
	ErrDuplicatePaymentReference = errors.New("duplicate payment reference")
	ErrStaleVersion              = errors.New("stale invoice version")
	ErrAmountExceedsDue          = errors.New("amount exceeds amount due")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrInvalidAllocation         = errors.New("allocation does not match an open item")
	ErrNotPayable                = errors.New("invoice is not payable")
	ErrRefundExceedsPayment      = errors.New("refund exceeds refundable amount")
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrOutstandingPayments       = errors.New("invoice has outstanding net payments")
	ErrAlreadyCancelled          = errors.New("invoice is cancelled")
)

type PackageDetail struct {
	PackageName  string    `bson:"packageName" json:"packageName"`
	ConsumedActs []ActLine `bson:"consumedActs" json:"consumedActs"`
	Savings      float64   `bson:"savings" json:"savings"`
}

type ActLine struct {
	Code  string  `bson:"code" json:"code"`
	Price float64 `bson:"price" json:"price"`
}

type ServiceReference struct {
	Kind    ServiceRefKind `bson:"kind" json:"kind"`
	OrderID string         `bson:"orderId" json:"orderId"`
}

type LineItem struct {
	Code                string             `bson:"code" json:"code"`
	Description         string             `bson:"description,omitempty" json:"description,omitempty"`
	Category            string             `bson:"category" json:"category"`
	Quantity            int                `bson:"quantity" json:"quantity"`
	UnitPrice           float64            `bson:"unitPrice" json:"unitPrice"`
	Discount            float64            `bson:"discount" json:"discount"`
	Tax                 float64            `bson:"tax" json:"tax"`
	Total               float64            `bson:"total" json:"total"`
	CoveragePercentage  float64            `bson:"coveragePercentage" json:"coveragePercentage"`
	CompanyShare        float64            `bson:"companyShare" json:"companyShare"`
	PatientShare        float64            `bson:"patientShare" json:"patientShare"`
	ApprovalStatus      ApprovalItemStatus `bson:"approvalStatus" json:"approvalStatus"`
	ApprovalID          string             `bson:"approvalId,omitempty" json:"approvalId,omitempty"`
	IsPackage           bool               `bson:"isPackage" json:"isPackage"`
	Package             *PackageDetail     `bson:"package,omitempty" json:"package,omitempty"`
	ServiceRef          *ServiceReference  `bson:"serviceRef,omitempty" json:"serviceRef,omitempty"`
	ExternalFulfillment bool               `bson:"externalFulfillment,omitempty" json:"externalFulfillment,omitempty"`
	PaidAmount          float64            `bson:"paidAmount" json:"paidAmount"`
	FullyPaid           bool               `bson:"fullyPaid" json:"fullyPaid"`
}

// ComputeTotal applies the line item formula: quantity*unitPrice - discount + tax.
func (li *LineItem) ComputeTotal() {
	li.Total = float64(li.Quantity)*li.UnitPrice - li.Discount + li.Tax
}

type Payment struct {
	ID             string    `bson:"id" json:"id"`
	Amount         float64   `bson:"amount" json:"amount"`
	Currency       string    `bson:"currency" json:"currency"`
	ExchangeRate   float64   `bson:"exchangeRate" json:"exchangeRate"`
	LedgerAmount   float64   `bson:"ledgerAmount" json:"ledgerAmount"`
	Method         string    `bson:"method" json:"method"`
	Reference      string    `bson:"reference,omitempty" json:"reference,omitempty"`
	RefundedAmount float64   `bson:"refundedAmount" json:"refundedAmount"`
	RecordedBy     string    `bson:"recordedBy" json:"recordedBy"`
	RecordedAt     time.Time `bson:"recordedAt" json:"recordedAt"`
}

func (p *Payment) RemainingRefundable() float64 {
	return p.LedgerAmount - p.RefundedAmount
}

type Refund struct {
	ID         string    `bson:"id" json:"id"`
	PaymentID  string    `bson:"paymentId" json:"paymentId"`
	Amount     float64   `bson:"amount" json:"amount"`
	Reason     string    `bson:"reason" json:"reason"`
	Method     string    `bson:"method,omitempty" json:"method,omitempty"`
	RecordedBy string    `bson:"recordedBy" json:"recordedBy"`
	RecordedAt time.Time `bson:"recordedAt" json:"recordedAt"`
}

type InvoiceSummary struct {
	Subtotal     float64 `bson:"subtotal" json:"subtotal"`
	Tax          float64 `bson:"tax" json:"tax"`
	Discount     float64 `bson:"discount" json:"discount"`
	Total        float64 `bson:"total" json:"total"`
	AmountPaid   float64 `bson:"amountPaid" json:"amountPaid"`
	AmountDue    float64 `bson:"amountDue" json:"amountDue"`
	CompanyShare float64 `bson:"companyShare" json:"companyShare"`
	PatientShare float64 `bson:"patientShare" json:"patientShare"`
}

// Invoice is the billing aggregate root. It is mutated only through
// ApplyPayment, IssueRefund, ApplyCoverage and Cancel, each of which bumps
// Version by exactly one.
type Invoice struct {
	ID                string         `bson:"_id,omitempty" json:"id"`
	PatientID         string         `bson:"patientId" json:"patientId"`
	VisitID           string         `bson:"visitId,omitempty" json:"visitId,omitempty"`
	CompanyID         string         `bson:"companyId,omitempty" json:"companyId,omitempty"`
	Currency          string         `bson:"currency" json:"currency"`
	Items             []LineItem     `bson:"items" json:"items"`
	Payments          []Payment      `bson:"payments" json:"payments"`
	Refunds           []Refund       `bson:"refunds" json:"refunds"`
	Summary           InvoiceSummary `bson:"summary" json:"summary"`
	Status            InvoiceStatus  `bson:"status" json:"status"`
	Version           int64          `bson:"version" json:"version"`
	ConventionApplied bool           `bson:"conventionApplied" json:"conventionApplied"`
	Warnings          []string       `bson:"warnings,omitempty" json:"warnings,omitempty"`
	CancelReason      string         `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CancelledBy       string         `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancelledAt       *time.Time     `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt         time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time      `bson:"updatedAt" json:"updatedAt"`
}

type ItemAllocation struct {
	ItemIndex int     `bson:"itemIndex" json:"itemIndex"`
	Amount    float64 `bson:"amount" json:"amount"`
}

type PaymentInput struct {
	Amount          float64
	Currency        string
	ExchangeRate    float64
	Method          string
	Reference       string
	Allocations     []ItemAllocation
	ExpectedVersion *int64
	Author          string
	Now             time.Time
}

type PaymentResult struct {
	Payment        *Payment
	NewlyPaidItems []int
	FullySettled   bool
}

type RefundInput struct {
	PaymentID       string
	Amount          float64
	Reason          string
	Method          string
	ExpectedVersion *int64
	Author          string
	Now             time.Time
}

func (inv *Invoice) payable() bool {
	switch inv.Status {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartial:
		return true
	}
	return false
}

func (inv *Invoice) checkVersion(expected *int64) error {
	if expected != nil && *expected != inv.Version {
		return ErrStaleVersion
	}
	return nil
}

// RecomputeSummary rebuilds the aggregate totals from items and payments.
// AmountDue tracks the patient share only; the company share is settled by
// the payer outside this ledger.
func (inv *Invoice) RecomputeSummary() {
	var s InvoiceSummary
	for _, item := range inv.Items {
		s.Subtotal += float64(item.Quantity) * item.UnitPrice
		s.Discount += item.Discount
		s.Tax += item.Tax
		s.Total += item.Total
		s.CompanyShare += item.CompanyShare
		s.PatientShare += item.PatientShare
	}
	for _, p := range inv.Payments {
		s.AmountPaid += p.LedgerAmount - p.RefundedAmount
	}
	s.AmountDue = s.PatientShare - s.AmountPaid
	if s.AmountDue < 0 {
		s.AmountDue = 0
	}
	inv.Summary = s
}

func (inv *Invoice) deriveStatus() {
	if inv.Status == InvoiceStatusCancelled || inv.Status == InvoiceStatusVoided {
		return
	}
	paid := inv.Summary.AmountPaid
	switch {
	case paid <= 0 && len(inv.Refunds) > 0 && len(inv.Payments) > 0:
		inv.Status = InvoiceStatusRefunded
	case paid <= 0:
		if inv.Status == InvoiceStatusPartial || inv.Status == InvoiceStatusPaid {
			inv.Status = InvoiceStatusIssued
		}
	case paid+money.Tolerance >= inv.Summary.PatientShare:
		inv.Status = InvoiceStatusPaid
	default:
		inv.Status = InvoiceStatusPartial
	}
}

// ApplyPayment records a payment against the invoice. Idempotency is keyed on
// the optional reference; optimistic concurrency on ExpectedVersion. The
// returned result lists the indexes of items that became fully paid by this
// call, which is what downstream cascades key on.
func (inv *Invoice) ApplyPayment(in PaymentInput) (*PaymentResult, error) {
	if !inv.payable() {
		return nil, ErrNotPayable
	}
	if in.Reference != "" {
		for _, p := range inv.Payments {
			if p.Reference == in.Reference {
				return nil, ErrDuplicatePaymentReference
			}
		}
	}
	if err := inv.checkVersion(in.ExpectedVersion); err != nil {
		return nil, err
	}

	rate := in.ExchangeRate
	if rate <= 0 {
		rate = 1
	}
	ledgerAmount := money.RoundCurrency(in.Amount * rate)
	if ledgerAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if money.GreaterThan(ledgerAmount, inv.Summary.AmountDue) {
		return nil, ErrAmountExceedsDue
	}

	result := &PaymentResult{}

	if len(in.Allocations) > 0 {
		var allocated float64
		for _, alloc := range in.Allocations {
			if alloc.ItemIndex < 0 || alloc.ItemIndex >= len(inv.Items) || alloc.Amount <= 0 {
				return nil, ErrInvalidAllocation
			}
			item := &inv.Items[alloc.ItemIndex]
			remaining := item.PatientShare - item.PaidAmount
			if money.GreaterThan(alloc.Amount, remaining) {
				return nil, ErrInvalidAllocation
			}
			allocated += alloc.Amount
		}
		if !money.Equals(allocated, ledgerAmount) {
			return nil, ErrInvalidAllocation
		}
		for _, alloc := range in.Allocations {
			item := &inv.Items[alloc.ItemIndex]
			item.PaidAmount += alloc.Amount
			if !item.FullyPaid && item.PaidAmount+money.Tolerance >= item.PatientShare {
				item.FullyPaid = true
				result.NewlyPaidItems = append(result.NewlyPaidItems, alloc.ItemIndex)
			}
		}
	}

	payment := Payment{
		ID:           uuid.NewString(),
		Amount:       in.Amount,
		Currency:     in.Currency,
		ExchangeRate: rate,
		LedgerAmount: ledgerAmount,
		Method:       in.Method,
		Reference:    in.Reference,
		RecordedBy:   in.Author,
		RecordedAt:   in.Now,
	}
	inv.Payments = append(inv.Payments, payment)
	inv.RecomputeSummary()
	inv.deriveStatus()

	if inv.Status == InvoiceStatusPaid {
		result.FullySettled = true
		// On full settlement every still-open item is considered paid, so
		// cascades fire for items no allocation named explicitly.
		for i := range inv.Items {
			item := &inv.Items[i]
			if !item.FullyPaid {
				item.PaidAmount = item.PatientShare
				item.FullyPaid = true
				result.NewlyPaidItems = append(result.NewlyPaidItems, i)
			}
		}
	}

	inv.Version++
	inv.UpdatedAt = in.Now
	result.Payment = &inv.Payments[len(inv.Payments)-1]
	return result, nil
}

// IssueRefund reverses part or all of a previously recorded payment and moves
// the status backward (paid -> partial, or refunded once nothing remains paid).
func (inv *Invoice) IssueRefund(in RefundInput) (*Refund, error) {
	if inv.Status == InvoiceStatusCancelled || inv.Status == InvoiceStatusVoided {
		return nil, ErrAlreadyCancelled
	}
	if err := inv.checkVersion(in.ExpectedVersion); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, ErrRefundExceedsPayment
	}

	var payment *Payment
	for i := range inv.Payments {
		if inv.Payments[i].ID == in.PaymentID {
			payment = &inv.Payments[i]
			break
		}
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if money.GreaterThan(in.Amount, payment.RemainingRefundable()) {
		return nil, ErrRefundExceedsPayment
	}

	payment.RefundedAmount += in.Amount
	refund := Refund{
		ID:         uuid.NewString(),
		PaymentID:  payment.ID,
		Amount:     in.Amount,
		Reason:     in.Reason,
		Method:     in.Method,
		RecordedBy: in.Author,
		RecordedAt: in.Now,
	}
	inv.Refunds = append(inv.Refunds, refund)

	inv.RecomputeSummary()
	inv.deriveStatus()
	inv.Version++
	inv.UpdatedAt = in.Now
	return &inv.Refunds[len(inv.Refunds)-1], nil
}

// NetPaid is the sum of payments minus refunds in ledger currency.
func (inv *Invoice) NetPaid() float64 {
	var net float64
	for _, p := range inv.Payments {
		net += p.LedgerAmount - p.RefundedAmount
	}
	return net
}

// Cancel rejects cancellation while any payment still holds a positive net
// amount; callers must refund first. Once cancelled no further mutation is
// accepted.
func (inv *Invoice) Cancel(reason, author string, now time.Time) error {
	if inv.Status == InvoiceStatusCancelled || inv.Status == InvoiceStatusVoided {
		return ErrAlreadyCancelled
	}
	if money.GreaterThan(inv.NetPaid(), 0) {
		return ErrOutstandingPayments
	}
	inv.Status = InvoiceStatusCancelled
	inv.CancelReason = reason
	inv.CancelledBy = author
	inv.CancelledAt = &now
	inv.Version++
	inv.UpdatedAt = now
	return nil
}

// ApplyCoverage replaces the line items with their covered split and marks
// the convention applied. Rejected while net payments exist: shares cannot
// move under money already collected.
func (inv *Invoice) ApplyCoverage(items []LineItem, companyID string, warnings []string, now time.Time) error {
	if inv.Status == InvoiceStatusCancelled || inv.Status == InvoiceStatusVoided {
		return ErrAlreadyCancelled
	}
	if money.GreaterThan(inv.NetPaid(), 0) {
		return ErrOutstandingPayments
	}
	inv.Items = items
	inv.CompanyID = companyID
	inv.ConventionApplied = true
	inv.Warnings = warnings
	inv.RecomputeSummary()
	inv.Version++
	inv.UpdatedAt = now
	return nil
}

// FullyRefunded reports whether every paid amount has been refunded back.
func (inv *Invoice) FullyRefunded() bool {
	return len(inv.Payments) > 0 && inv.NetPaid() <= money.Tolerance
}
