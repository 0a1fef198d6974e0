package posting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting"
	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/payments"
)

type fakeLedger struct {
	entries []accounting.PostingInput
	posted  map[string]struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{posted: make(map[string]struct{})}
}

func (l *fakeLedger) PostEntry(ctx context.Context, input accounting.PostingInput) (accounting.Entry, error) {
	key := string(input.Origin.Kind) + ":" + input.Origin.ID.String()
	if _, ok := l.posted[key]; ok {
		return accounting.Entry{}, accounting.ErrAlreadyPosted
	}
	if err := input.Validate(); err != nil {
		return accounting.Entry{}, err
	}
	l.posted[key] = struct{}{}
	l.entries = append(l.entries, input)
	return accounting.Entry{PieceNumber: fmt.Sprintf("%s-%06d", input.JournalCode, len(l.entries))}, nil
}

type fakeResolver struct {
	missing map[accounts.DefaultRole]bool
}

func (r *fakeResolver) ResolveDefault(ctx context.Context, role accounts.DefaultRole) (accounts.Account, error) {
	if r.missing[role] {
		return accounts.Account{}, fmt.Errorf("%w: %s", accounts.ErrMissingConfiguration, role)
	}
	numbers := map[accounts.DefaultRole]string{
		accounts.RoleReceivables:   "411000",
		accounts.RolePayables:      "401000",
		accounts.RoleSales:         "707000",
		accounts.RolePurchases:     "607000",
		accounts.RoleVATCollected:  "445710",
		accounts.RoleVATDeductible: "445660",
		accounts.RoleTreasury:      "512000",
	}
	return accounts.Account{Number: numbers[role]}, nil
}

type fakeStock struct {
	movements []inventory.MovementInput
	fail      error
}

func (s *fakeStock) RecordMovement(ctx context.Context, input inventory.MovementInput) (*inventory.Movement, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.movements = append(s.movements, input)
	return &inventory.Movement{Qty: input.Qty, Kind: input.Kind}, nil
}

type fakeBook struct {
	payments map[uuid.UUID]payments.Payment
	opened   []payments.OpenDocument
	applied  []uuid.UUID
}

func newFakeBook() *fakeBook {
	return &fakeBook{payments: make(map[uuid.UUID]payments.Payment)}
}

func (b *fakeBook) Get(ctx context.Context, id uuid.UUID) (payments.Payment, error) {
	p, ok := b.payments[id]
	if !ok {
		return payments.Payment{}, payments.ErrPaymentNotFound
	}
	return p, nil
}

func (b *fakeBook) OpenDocument(ctx context.Context, doc payments.OpenDocument) (payments.OpenDocument, error) {
	doc.ID = uuid.New()
	b.opened = append(b.opened, doc)
	return doc, nil
}

func (b *fakeBook) Apply(ctx context.Context, paymentID uuid.UUID, actor string) (payments.Plan, error) {
	b.applied = append(b.applied, paymentID)
	return payments.Plan{}, nil
}

func newHooksFixture() (*Hooks, *fakeLedger, *fakeStock, *fakeBook) {
	ledger := newFakeLedger()
	stock := &fakeStock{}
	book := newFakeBook()
	hooks := NewHooks(ledger, &fakeResolver{}, stock, book, Journals{
		Sales: "VEN", Purchases: "ACH", Treasury: "BNQ", Misc: "OD",
	})
	return hooks, ledger, stock, book
}

func invoiceEvent() SalesInvoicePostedEvent {
	return SalesInvoicePostedEvent{
		ID:       uuid.New(),
		Number:   "FA-2026-001",
		Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DueDate:  time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Customer: "ACME",
		Lines: []documents.Line{
			{Quantity: 3, UnitPriceHT: 1000, DiscountType: documents.DiscountPercentage, DiscountValue: 10, TaxRatePct: 18},
		},
		Actor: "tester",
	}
}

func TestHandleSalesInvoicePosted(t *testing.T) {
	hooks, ledger, _, book := newHooksFixture()

	require.NoError(t, hooks.HandleSalesInvoicePosted(context.Background(), invoiceEvent()))

	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	require.Equal(t, "VEN", entry.JournalCode)
	require.Len(t, entry.Lines, 3)
	require.InDelta(t, 3186.0, entry.Lines[0].Debit, 0.001)
	require.Equal(t, "411000", entry.Lines[0].AccountNumber)
	require.InDelta(t, 2700.0, entry.Lines[1].Credit, 0.001)
	require.Equal(t, "707000", entry.Lines[1].AccountNumber)
	require.InDelta(t, 486.0, entry.Lines[2].Credit, 0.001)
	require.Equal(t, "445710", entry.Lines[2].AccountNumber)

	require.Len(t, book.opened, 1)
	require.Equal(t, payments.DirectionIncoming, book.opened[0].Direction)
	require.InDelta(t, 3186.0, book.opened[0].TotalDue, 0.001)
}

func TestHandleSalesInvoicePostedTwiceIsNoOp(t *testing.T) {
	hooks, ledger, _, book := newHooksFixture()
	evt := invoiceEvent()

	require.NoError(t, hooks.HandleSalesInvoicePosted(context.Background(), evt))
	require.NoError(t, hooks.HandleSalesInvoicePosted(context.Background(), evt))

	require.Len(t, ledger.entries, 1)
	require.Len(t, book.opened, 1)
}

func TestHandleSalesInvoiceMissingConfigurationBlocks(t *testing.T) {
	ledger := newFakeLedger()
	book := newFakeBook()
	hooks := NewHooks(ledger, &fakeResolver{missing: map[accounts.DefaultRole]bool{accounts.RoleSales: true}}, nil, book, Journals{Sales: "VEN"})

	err := hooks.HandleSalesInvoicePosted(context.Background(), invoiceEvent())
	require.ErrorIs(t, err, accounts.ErrMissingConfiguration)
	require.Empty(t, ledger.entries)
	require.Empty(t, book.opened)
}

func TestHandlePurchaseReceiptPosted(t *testing.T) {
	hooks, ledger, stock, book := newHooksFixture()

	evt := PurchaseReceiptPostedEvent{
		ID:       uuid.New(),
		Number:   "BR-2026-042",
		Date:     time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		DueDate:  time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		Supplier: "Supplies Inc",
		Lines: []PurchaseLine{
			{ProductID: 1, WarehouseID: 10, Qty: 10, UnitCost: 100, TaxRatePct: 18},
			{ProductID: 2, WarehouseID: 10, Qty: 5, UnitCost: 120, TaxRatePct: 18},
		},
		Actor: "tester",
	}
	require.NoError(t, hooks.HandlePurchaseReceiptPosted(context.Background(), evt))

	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	require.Equal(t, "ACH", entry.JournalCode)
	// 1600 ex tax, 288 tax.
	require.InDelta(t, 1600.0, entry.Lines[0].Debit, 0.001)
	require.InDelta(t, 288.0, entry.Lines[1].Debit, 0.001)
	require.InDelta(t, 1888.0, entry.Lines[2].Credit, 0.001)

	require.Len(t, stock.movements, 2)
	require.Equal(t, inventory.KindPurchaseReceipt, stock.movements[0].Kind)
	require.InDelta(t, 10.0, stock.movements[0].Qty, 0.001)

	require.Len(t, book.opened, 1)
	require.Equal(t, payments.DirectionOutgoing, book.opened[0].Direction)
	require.InDelta(t, 1888.0, book.opened[0].TotalDue, 0.001)
}

func TestHandleDeliveryNotePosted(t *testing.T) {
	hooks, _, stock, _ := newHooksFixture()

	evt := DeliveryNotePostedEvent{
		ID:     uuid.New(),
		Number: "BL-2026-007",
		Date:   time.Now(),
		Lines:  []IssueLine{{ProductID: 1, WarehouseID: 10, Qty: 4}},
		Actor:  "tester",
	}
	require.NoError(t, hooks.HandleDeliveryNotePosted(context.Background(), evt))
	require.Len(t, stock.movements, 1)
	require.Equal(t, inventory.KindSaleIssue, stock.movements[0].Kind)
	require.InDelta(t, -4.0, stock.movements[0].Qty, 0.001)
}

func TestHandlePaymentValidated(t *testing.T) {
	hooks, ledger, _, book := newHooksFixture()

	paymentID := uuid.New()
	book.payments[paymentID] = payments.Payment{
		ID:        paymentID,
		Amount:    150,
		Direction: payments.DirectionIncoming,
		Target:    documents.Ref{Kind: documents.RefKindPayment, ID: paymentID, Number: "PAY-9"},
		Status:    payments.StatusPending,
	}

	evt := PaymentValidatedEvent{PaymentID: paymentID, Date: time.Now(), Actor: "tester"}
	require.NoError(t, hooks.HandlePaymentValidated(context.Background(), evt))

	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	require.Equal(t, "BNQ", entry.JournalCode)
	require.Equal(t, "512000", entry.Lines[0].AccountNumber)
	require.InDelta(t, 150.0, entry.Lines[0].Debit, 0.001)
	require.Equal(t, "411000", entry.Lines[1].AccountNumber)
	require.InDelta(t, 150.0, entry.Lines[1].Credit, 0.001)

	require.Equal(t, []uuid.UUID{paymentID}, book.applied)

	// Re-delivery books nothing and does not re-allocate.
	require.NoError(t, hooks.HandlePaymentValidated(context.Background(), evt))
	require.Len(t, ledger.entries, 1)
	require.Len(t, book.applied, 1)
}
