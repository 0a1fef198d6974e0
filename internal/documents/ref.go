// Package documents holds the cross-module document vocabulary: the
// tagged origin/target reference and the pure totals rollup.
package documents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RefKind enumerates the document types a posting may originate from.
type RefKind string

const (
	RefKindInvoice       RefKind = "INVOICE"
	RefKindPurchaseOrder RefKind = "PURCHASE_ORDER"
	RefKindDeliveryNote  RefKind = "DELIVERY_NOTE"
	RefKindPayment       RefKind = "PAYMENT"
	RefKindStockCount    RefKind = "STOCK_COUNT"
	RefKindManual        RefKind = "MANUAL"
)

// Ref points at the business document behind a ledger entry or stock
// movement. Kind is a closed set; dynamic model-name dispatch is not
// supported.
type Ref struct {
	Kind   RefKind
	ID     uuid.UUID
	Number string
}

// ErrUnknownRefKind indicates an out-of-set document kind.
var ErrUnknownRefKind = errors.New("documents: unknown reference kind")

var validKinds = map[RefKind]struct{}{
	RefKindInvoice:       {},
	RefKindPurchaseOrder: {},
	RefKindDeliveryNote:  {},
	RefKindPayment:       {},
	RefKindStockCount:    {},
	RefKindManual:        {},
}

// Validate rejects refs outside the closed kind set or missing an id.
func (r Ref) Validate() error {
	if _, ok := validKinds[r.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRefKind, r.Kind)
	}
	if r.ID == uuid.Nil {
		return errors.New("documents: reference id required")
	}
	return nil
}

// IsZero reports whether the ref carries no document.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == uuid.Nil
}

// String renders the ref for audit labels.
func (r Ref) String() string {
	if r.Number != "" {
		return fmt.Sprintf("%s %s", r.Kind, r.Number)
	}
	return fmt.Sprintf("%s %s", r.Kind, r.ID)
}
