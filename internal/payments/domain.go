// Package payments holds payment records and the allocation of cash
// against outstanding document balances.
package payments

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

// Direction marks a payment as cash in or cash out.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusValidated Status = "VALIDATED"
	StatusVoid      Status = "VOID"
	StatusFailed    Status = "FAILED"
)

// SettlementStatus is derived from paid amount versus total due.
type SettlementStatus string

const (
	SettlementUnpaid        SettlementStatus = "UNPAID"
	SettlementPartiallyPaid SettlementStatus = "PARTIALLY_PAID"
	SettlementPaid          SettlementStatus = "PAID"
)

// Payment is a cash event to be spread over open documents.
type Payment struct {
	ID        uuid.UUID
	Amount    float64
	Direction Direction
	Target    documents.Ref
	Status    Status
	Method    string
	CreatedAt time.Time
}

// PaymentInput registers a new pending payment.
type PaymentInput struct {
	Amount    float64
	Direction Direction
	Target    documents.Ref
	Method    string
	Actor     string
}

// OpenDocument is a receivable or payable balance a payment can settle.
type OpenDocument struct {
	ID         uuid.UUID
	Ref        documents.Ref
	Direction  Direction
	DueDate    time.Time
	TotalDue   float64
	Paid       float64
	Settlement SettlementStatus
}

// Balance is the amount still owed on the document.
func (d OpenDocument) Balance() float64 {
	return d.TotalDue - d.Paid
}

// Allocation assigns part of a payment to one document.
type Allocation struct {
	DocumentID uuid.UUID
	Applied    float64
}

// Plan is the result of spreading an amount over ordered documents.
// A positive leftover is an over-payment the caller must deal with.
type Plan struct {
	Allocations []Allocation
	Leftover    float64
}

// AgingBuckets groups outstanding balances by days overdue.
type AgingBuckets struct {
	Current   float64 `json:"current"`
	Bucket30  float64 `json:"bucket_30"`
	Bucket60  float64 `json:"bucket_60"`
	Bucket90  float64 `json:"bucket_90"`
	Bucket120 float64 `json:"bucket_120"`
}

var (
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("payments: amount must be > 0")
	// ErrInvalidDirection indicates a direction outside the closed set.
	ErrInvalidDirection = errors.New("payments: invalid direction")
	// ErrPaymentNotFound indicates an unknown payment id.
	ErrPaymentNotFound = errors.New("payments: payment not found")
	// ErrDocumentNotFound indicates an unknown open document id.
	ErrDocumentNotFound = errors.New("payments: open document not found")
	// ErrNotPending indicates an apply attempt on a settled payment.
	ErrNotPending = errors.New("payments: payment is not pending")
)

// Validate checks the structural fields of a payment registration.
func (in PaymentInput) Validate() error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if in.Direction != DirectionIncoming && in.Direction != DirectionOutgoing {
		return ErrInvalidDirection
	}
	return in.Target.Validate()
}

// SettlementOf derives the settlement status. Paid uses a >= check so
// rounding in the caller cannot leave a fully covered document
// partially paid.
func SettlementOf(paid, totalDue float64) SettlementStatus {
	switch {
	case paid >= totalDue:
		return SettlementPaid
	case paid > 0:
		return SettlementPartiallyPaid
	default:
		return SettlementUnpaid
	}
}
