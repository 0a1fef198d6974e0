// Package inventory implements the stock ledger: signed movements per
// (product, warehouse), non-negative balances and weighted-average
// valuation.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	KindPurchaseReceipt MovementKind = "PURCHASE_RECEIPT"
	KindSaleIssue       MovementKind = "SALE_ISSUE"
	KindAdjustment      MovementKind = "ADJUSTMENT"
	KindTransferOut     MovementKind = "TRANSFER_OUT"
	KindTransferIn      MovementKind = "TRANSFER_IN"
	KindCustomerReturn  MovementKind = "CUSTOMER_RETURN"
	KindSupplierReturn  MovementKind = "SUPPLIER_RETURN"
	KindLoss            MovementKind = "LOSS"
	KindInitial         MovementKind = "INITIAL"
)

// inboundKinds and outboundKinds pin each kind to a quantity sign;
// ADJUSTMENT is the only kind allowed either way.
var inboundKinds = map[MovementKind]struct{}{
	KindPurchaseReceipt: {},
	KindTransferIn:      {},
	KindCustomerReturn:  {},
	KindInitial:         {},
}

var outboundKinds = map[MovementKind]struct{}{
	KindSaleIssue:      {},
	KindTransferOut:    {},
	KindSupplierReturn: {},
	KindLoss:           {},
}

func (k MovementKind) known() bool {
	if k == KindAdjustment {
		return true
	}
	_, in := inboundKinds[k]
	_, out := outboundKinds[k]
	return in || out
}

// AllowsQuantity reports whether the signed quantity fits the kind.
func (k MovementKind) AllowsQuantity(qty float64) bool {
	if k == KindAdjustment {
		return qty != 0
	}
	if _, ok := inboundKinds[k]; ok {
		return qty > 0
	}
	if _, ok := outboundKinds[k]; ok {
		return qty < 0
	}
	return false
}

// Product carries the valuation-relevant product fields. QtyTotal must
// always equal the sum of its warehouse quantities.
type Product struct {
	ID           int64
	SKU          string
	StockTracked bool
	QtyTotal     float64
	AvgCost      float64
	UpdatedAt    time.Time
}

// Stock is the per-warehouse quantity record.
type Stock struct {
	ProductID   int64
	WarehouseID int64
	Qty         float64
	UpdatedAt   time.Time
}

// Movement is the immutable audit fact written for every stock change.
// Corrections are new offsetting movements, never edits.
type Movement struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	Qty         float64
	Kind        MovementKind
	UnitCost    float64
	Value       float64
	Origin      documents.Ref
	Actor       string
	At          time.Time
}

// MovementInput describes a requested stock movement.
type MovementInput struct {
	ProductID   int64
	WarehouseID int64
	Qty         float64
	Kind        MovementKind
	UnitCost    float64 // acquisition cost, inbound only
	Origin      documents.Ref
	Actor       string
}

// TransferInput describes a warehouse-to-warehouse move.
type TransferInput struct {
	ProductID    int64
	SrcWarehouse int64
	DstWarehouse int64
	Qty          float64
	Origin       documents.Ref
	Actor        string
}

// StockCardFilter filters the movement history of one stock location.
type StockCardFilter struct {
	ProductID   int64
	WarehouseID int64
	From        time.Time
	To          time.Time
	Limit       int
}

var (
	// ErrInvalidQuantity indicates a zero or sign-mismatched quantity.
	ErrInvalidQuantity = errors.New("inventory: invalid quantity for movement")
	// ErrInvalidUnitCost indicates a negative acquisition cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrInsufficientStock indicates the movement would drive a
	// quantity negative.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrNoStockAtLocation indicates an outbound against a warehouse
	// that never held the product.
	ErrNoStockAtLocation = errors.New("inventory: no stock record at location")
	// ErrProductNotFound indicates an unknown product reference.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrStockNotFound indicates a missing stock row (internal signal).
	ErrStockNotFound = errors.New("inventory: stock record not found")
	// ErrUnknownKind indicates a movement kind outside the closed set.
	ErrUnknownKind = errors.New("inventory: unknown movement kind")
)

// Validate rejects structurally bad input before any lock is taken.
func (in MovementInput) Validate() error {
	if in.ProductID == 0 || in.WarehouseID == 0 {
		return errors.New("inventory: product and warehouse required")
	}
	if in.Qty == 0 {
		return ErrInvalidQuantity
	}
	if !in.Kind.known() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, in.Kind)
	}
	if !in.Kind.AllowsQuantity(in.Qty) {
		return fmt.Errorf("%w: %s with qty %v", ErrInvalidQuantity, in.Kind, in.Qty)
	}
	if in.Qty > 0 && in.UnitCost < 0 {
		return ErrInvalidUnitCost
	}
	return in.Origin.Validate()
}
