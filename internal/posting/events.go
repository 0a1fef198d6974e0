package posting

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

// SalesInvoicePostedEvent carries the pricing lines of a validated
// sales invoice.
type SalesInvoicePostedEvent struct {
	ID       uuid.UUID
	Number   string
	Date     time.Time
	DueDate  time.Time
	Customer string
	Lines    []documents.Line
	Actor    string
}

// PurchaseLine is one received product with its acquisition pricing.
type PurchaseLine struct {
	ProductID   int64
	WarehouseID int64
	Qty         float64
	UnitCost    float64
	TaxRatePct  float64
}

// PurchaseReceiptPostedEvent carries the received lines of a supplier
// delivery.
type PurchaseReceiptPostedEvent struct {
	ID       uuid.UUID
	Number   string
	Date     time.Time
	DueDate  time.Time
	Supplier string
	Lines    []PurchaseLine
	Actor    string
}

// IssueLine is one shipped product.
type IssueLine struct {
	ProductID   int64
	WarehouseID int64
	Qty         float64
}

// DeliveryNotePostedEvent carries the shipped lines of a customer
// delivery.
type DeliveryNotePostedEvent struct {
	ID     uuid.UUID
	Number string
	Date   time.Time
	Lines  []IssueLine
	Actor  string
}

// PaymentValidatedEvent triggers allocation and the treasury entry for
// a registered payment.
type PaymentValidatedEvent struct {
	PaymentID uuid.UUID
	Date      time.Time
	Actor     string
}
