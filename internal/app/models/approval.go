package models

import (
	"errors"
	"time"
)

type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "pending"
	ApprovalStatusApproved  ApprovalStatus = "approved"
	ApprovalStatusRejected  ApprovalStatus = "rejected"
	ApprovalStatusUsed      ApprovalStatus = "used"
	ApprovalStatusExpired   ApprovalStatus = "expired"
	ApprovalStatusCancelled ApprovalStatus = "cancelled"
)

var (
	ErrApprovalNotPending   = errors.New("approval is not pending")
	ErrApprovalNotApproved  = errors.New("approval is not approved")
	ErrApprovalExpired      = errors.New("approval validity window has passed")
	ErrApprovalNotStarted   = errors.New("approval validity window has not started")
	ErrApprovalQuotaReached = errors.New("approval quantity already consumed")
	ErrApprovalTerminal     = errors.New("approval is in a terminal state")
)

type ApprovalUse struct {
	InvoiceID string    `bson:"invoiceId" json:"invoiceId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	UsedAt    time.Time `bson:"usedAt" json:"usedAt"`
}

// Approval is a pre-authorization record gating payer reimbursement of one
// act. Transitions are forward-only except the administrative cancel; expiry
// is evaluated at read time through EffectiveStatus, never by a sweep.
type Approval struct {
	ID               string         `bson:"_id,omitempty" json:"id"`
	PatientID        string         `bson:"patientId" json:"patientId"`
	CompanyID        string         `bson:"companyId" json:"companyId"`
	ActCode          string         `bson:"actCode" json:"actCode"`
	Status           ApprovalStatus `bson:"status" json:"status"`
	QuantityApproved int            `bson:"quantityApproved" json:"quantityApproved"`
	UsedCount        int            `bson:"usedCount" json:"usedCount"`
	ApprovedAmount   float64        `bson:"approvedAmount,omitempty" json:"approvedAmount,omitempty"`
	ValidFrom        *time.Time     `bson:"validFrom,omitempty" json:"validFrom,omitempty"`
	ValidUntil       *time.Time     `bson:"validUntil,omitempty" json:"validUntil,omitempty"`
	RejectReason     string         `bson:"rejectReason,omitempty" json:"rejectReason,omitempty"`
	Uses             []ApprovalUse  `bson:"uses,omitempty" json:"uses,omitempty"`
	RequestedBy      string         `bson:"requestedBy,omitempty" json:"requestedBy,omitempty"`
	DecidedBy        string         `bson:"decidedBy,omitempty" json:"decidedBy,omitempty"`
	CreatedAt        time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// EffectiveStatus folds time-based expiry into the stored status.
func (a *Approval) EffectiveStatus(now time.Time) ApprovalStatus {
	if a.Status == ApprovalStatusApproved && a.ValidUntil != nil && a.ValidUntil.Before(now) {
		return ApprovalStatusExpired
	}
	return a.Status
}

// IsUsable is the read-only validity predicate: approved, inside the validity
// window, with remaining quantity.
func (a *Approval) IsUsable(now time.Time) bool {
	if a.EffectiveStatus(now) != ApprovalStatusApproved {
		return false
	}
	if a.ValidFrom != nil && a.ValidFrom.After(now) {
		return false
	}
	if a.QuantityApproved > 0 && a.UsedCount >= a.QuantityApproved {
		return false
	}
	return true
}

func (a *Approval) Approve(quantity int, approvedAmount float64, validFrom, validUntil *time.Time, decidedBy string, now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return ErrApprovalNotPending
	}
	a.Status = ApprovalStatusApproved
	a.QuantityApproved = quantity
	a.ApprovedAmount = approvedAmount
	a.ValidFrom = validFrom
	a.ValidUntil = validUntil
	a.DecidedBy = decidedBy
	a.UpdatedAt = now
	return nil
}

func (a *Approval) Reject(reason, decidedBy string, now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return ErrApprovalNotPending
	}
	a.Status = ApprovalStatusRejected
	a.RejectReason = reason
	a.DecidedBy = decidedBy
	a.UpdatedAt = now
	return nil
}

// Use consumes quantity against the approved quota and transitions to used
// once the cap is reached.
func (a *Approval) Use(invoiceID string, quantity int, now time.Time) error {
	if a.EffectiveStatus(now) != ApprovalStatusApproved {
		if a.EffectiveStatus(now) == ApprovalStatusExpired {
			return ErrApprovalExpired
		}
		return ErrApprovalNotApproved
	}
	if a.ValidFrom != nil && a.ValidFrom.After(now) {
		return ErrApprovalNotStarted
	}
	if quantity <= 0 {
		quantity = 1
	}
	if a.QuantityApproved > 0 && a.UsedCount+quantity > a.QuantityApproved {
		return ErrApprovalQuotaReached
	}
	a.UsedCount += quantity
	a.Uses = append(a.Uses, ApprovalUse{InvoiceID: invoiceID, Quantity: quantity, UsedAt: now})
	if a.QuantityApproved > 0 && a.UsedCount >= a.QuantityApproved {
		a.Status = ApprovalStatusUsed
	}
	a.UpdatedAt = now
	return nil
}

// ReleaseUse gives back consumed quantity on refund reversal. A fully used
// approval drops back to approved so the freed quantity can be spent again.
func (a *Approval) ReleaseUse(invoiceID string, quantity int, now time.Time) {
	if quantity <= 0 {
		quantity = 1
	}
	if quantity > a.UsedCount {
		quantity = a.UsedCount
	}
	a.UsedCount -= quantity
	if a.Status == ApprovalStatusUsed && (a.QuantityApproved == 0 || a.UsedCount < a.QuantityApproved) {
		a.Status = ApprovalStatusApproved
	}
	for i := range a.Uses {
		if a.Uses[i].InvoiceID == invoiceID {
			a.Uses = append(a.Uses[:i], a.Uses[i+1:]...)
			break
		}
	}
	a.UpdatedAt = now
}

// CancelAdministratively is the only backward transition, allowed from any
// non-terminal state.
func (a *Approval) CancelAdministratively(decidedBy string, now time.Time) error {
	switch a.Status {
	case ApprovalStatusRejected, ApprovalStatusCancelled, ApprovalStatusUsed:
		return ErrApprovalTerminal
	}
	a.Status = ApprovalStatusCancelled
	a.DecidedBy = decidedBy
	a.UpdatedAt = now
	return nil
}
