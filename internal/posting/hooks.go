// Package posting wires business documents into the ledger, the stock
// ledger and the payment book. It owns no state of its own; each
// handler turns one document event into the postings the engines
// require.
package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting"
	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/payments"
)

// Ledger exposes entry posting required by the hooks.
type Ledger interface {
	PostEntry(ctx context.Context, input accounting.PostingInput) (accounting.Entry, error)
}

// AccountResolver resolves configured default accounts per role.
type AccountResolver interface {
	ResolveDefault(ctx context.Context, role accounts.DefaultRole) (accounts.Account, error)
}

// Stock exposes movement recording required by the hooks.
type Stock interface {
	RecordMovement(ctx context.Context, input inventory.MovementInput) (*inventory.Movement, error)
}

// Book exposes the payment-side operations required by the hooks.
type Book interface {
	Get(ctx context.Context, id uuid.UUID) (payments.Payment, error)
	OpenDocument(ctx context.Context, doc payments.OpenDocument) (payments.OpenDocument, error)
	Apply(ctx context.Context, paymentID uuid.UUID, actor string) (payments.Plan, error)
}

// Journals names the journal each posting flow writes to.
type Journals struct {
	Sales     string `envconfig:"JOURNAL_SALES" default:"VEN"`
	Purchases string `envconfig:"JOURNAL_PURCHASES" default:"ACH"`
	Treasury  string `envconfig:"JOURNAL_TREASURY" default:"BNQ"`
	Misc      string `envconfig:"JOURNAL_MISC" default:"OD"`
}

// Observer counts posting outcomes. Implementations must tolerate a
// nil receiver.
type Observer interface {
	EntryPosted(journal string)
	MovementRecorded(kind string)
	PaymentApplied()
	PostingConflict()
}

// Hooks turns document events into ledger entries, stock movements and
// payment allocations.
type Hooks struct {
	ledger   Ledger
	accounts AccountResolver
	stock    Stock
	book     Book
	journals Journals
	obs      Observer
}

// NewHooks constructs Hooks.
func NewHooks(ledger Ledger, resolver AccountResolver, stock Stock, book Book, journals Journals) *Hooks {
	return &Hooks{ledger: ledger, accounts: resolver, stock: stock, book: book, journals: journals}
}

// WithObserver attaches outcome counters.
func (h *Hooks) WithObserver(obs Observer) *Hooks {
	h.obs = obs
	return h
}

// post forwards to the ledger and treats a duplicate origin as done;
// re-delivered events must not fail the pipeline.
func (h *Hooks) post(ctx context.Context, input accounting.PostingInput) (bool, error) {
	_, err := h.ledger.PostEntry(ctx, input)
	if errors.Is(err, accounting.ErrAlreadyPosted) {
		if h.obs != nil {
			h.obs.PostingConflict()
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if h.obs != nil {
		h.obs.EntryPosted(input.JournalCode)
	}
	return true, nil
}

func (h *Hooks) recordMovement(ctx context.Context, input inventory.MovementInput) error {
	if _, err := h.stock.RecordMovement(ctx, input); err != nil {
		return err
	}
	if h.obs != nil {
		h.obs.MovementRecorded(string(input.Kind))
	}
	return nil
}

// HandleSalesInvoicePosted books the receivable, revenue and collected
// VAT for an invoice, then opens its balance for payment allocation.
func (h *Hooks) HandleSalesInvoicePosted(ctx context.Context, evt SalesInvoicePostedEvent) error {
	if h == nil || h.ledger == nil {
		return nil
	}
	totals := documents.ComputeTotals(evt.Lines)
	if totals.WithTax == 0 {
		return nil
	}
	receivables, err := h.accounts.ResolveDefault(ctx, accounts.RoleReceivables)
	if err != nil {
		return err
	}
	sales, err := h.accounts.ResolveDefault(ctx, accounts.RoleSales)
	if err != nil {
		return err
	}
	lines := []accounting.LineInput{
		{AccountNumber: receivables.Number, Label: evt.Customer, Debit: totals.WithTax},
		{AccountNumber: sales.Number, Label: "Sales " + evt.Number, Credit: totals.ExTax - totals.Discount},
	}
	if totals.Tax > 0 {
		vat, err := h.accounts.ResolveDefault(ctx, accounts.RoleVATCollected)
		if err != nil {
			return err
		}
		lines = append(lines, accounting.LineInput{AccountNumber: vat.Number, Label: "VAT " + evt.Number, Credit: totals.Tax})
	}
	posted, err := h.post(ctx, accounting.PostingInput{
		Date:        evt.Date,
		JournalCode: h.journals.Sales,
		Label:       fmt.Sprintf("Invoice %s", evt.Number),
		Lines:       lines,
		Origin:      documents.Ref{Kind: documents.RefKindInvoice, ID: evt.ID, Number: evt.Number},
		PostedBy:    evt.Actor,
	})
	if err != nil || !posted {
		return err
	}
	if h.book == nil {
		return nil
	}
	_, err = h.book.OpenDocument(ctx, payments.OpenDocument{
		Ref:       documents.Ref{Kind: documents.RefKindInvoice, ID: evt.ID, Number: evt.Number},
		Direction: payments.DirectionIncoming,
		DueDate:   evt.DueDate,
		TotalDue:  totals.WithTax,
	})
	return err
}

// HandlePurchaseReceiptPosted receives the goods into stock, books the
// purchase against the supplier and opens the payable balance.
func (h *Hooks) HandlePurchaseReceiptPosted(ctx context.Context, evt PurchaseReceiptPostedEvent) error {
	if h == nil || h.ledger == nil {
		return nil
	}
	origin := documents.Ref{Kind: documents.RefKindPurchaseOrder, ID: evt.ID, Number: evt.Number}
	pricing := make([]documents.Line, 0, len(evt.Lines))
	for _, line := range evt.Lines {
		pricing = append(pricing, documents.Line{Quantity: line.Qty, UnitPriceHT: line.UnitCost, TaxRatePct: line.TaxRatePct})
	}
	totals := documents.ComputeTotals(pricing)
	if totals.WithTax == 0 {
		return nil
	}

	payables, err := h.accounts.ResolveDefault(ctx, accounts.RolePayables)
	if err != nil {
		return err
	}
	purchases, err := h.accounts.ResolveDefault(ctx, accounts.RolePurchases)
	if err != nil {
		return err
	}
	lines := []accounting.LineInput{
		{AccountNumber: purchases.Number, Label: "Purchases " + evt.Number, Debit: totals.ExTax - totals.Discount},
	}
	if totals.Tax > 0 {
		vat, err := h.accounts.ResolveDefault(ctx, accounts.RoleVATDeductible)
		if err != nil {
			return err
		}
		lines = append(lines, accounting.LineInput{AccountNumber: vat.Number, Label: "VAT " + evt.Number, Debit: totals.Tax})
	}
	lines = append(lines, accounting.LineInput{AccountNumber: payables.Number, Label: evt.Supplier, Credit: totals.WithTax})

	posted, err := h.post(ctx, accounting.PostingInput{
		Date:        evt.Date,
		JournalCode: h.journals.Purchases,
		Label:       fmt.Sprintf("Receipt %s", evt.Number),
		Lines:       lines,
		Origin:      origin,
		PostedBy:    evt.Actor,
	})
	if err != nil || !posted {
		return err
	}

	if h.stock != nil {
		for _, line := range evt.Lines {
			err := h.recordMovement(ctx, inventory.MovementInput{
				ProductID:   line.ProductID,
				WarehouseID: line.WarehouseID,
				Qty:         line.Qty,
				Kind:        inventory.KindPurchaseReceipt,
				UnitCost:    line.UnitCost,
				Origin:      origin,
				Actor:       evt.Actor,
			})
			if err != nil {
				return err
			}
		}
	}
	if h.book == nil {
		return nil
	}
	_, err = h.book.OpenDocument(ctx, payments.OpenDocument{
		Ref:       origin,
		Direction: payments.DirectionOutgoing,
		DueDate:   evt.DueDate,
		TotalDue:  totals.WithTax,
	})
	return err
}

// HandleDeliveryNotePosted issues shipped goods out of stock, valued
// at the running average cost.
func (h *Hooks) HandleDeliveryNotePosted(ctx context.Context, evt DeliveryNotePostedEvent) error {
	if h == nil || h.stock == nil {
		return nil
	}
	origin := documents.Ref{Kind: documents.RefKindDeliveryNote, ID: evt.ID, Number: evt.Number}
	for _, line := range evt.Lines {
		if line.Qty <= 0 {
			return fmt.Errorf("%w: delivery qty %v", inventory.ErrInvalidQuantity, line.Qty)
		}
		err := h.recordMovement(ctx, inventory.MovementInput{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Qty:         -line.Qty,
			Kind:        inventory.KindSaleIssue,
			Origin:      origin,
			Actor:       evt.Actor,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// HandlePaymentValidated books the treasury entry for a payment and
// spreads it over the open balances of its direction.
func (h *Hooks) HandlePaymentValidated(ctx context.Context, evt PaymentValidatedEvent) error {
	if h == nil || h.ledger == nil || h.book == nil {
		return nil
	}
	payment, err := h.book.Get(ctx, evt.PaymentID)
	if err != nil {
		return err
	}
	treasury, err := h.accounts.ResolveDefault(ctx, accounts.RoleTreasury)
	if err != nil {
		return err
	}
	var counterRole accounts.DefaultRole
	if payment.Direction == payments.DirectionIncoming {
		counterRole = accounts.RoleReceivables
	} else {
		counterRole = accounts.RolePayables
	}
	counterpart, err := h.accounts.ResolveDefault(ctx, counterRole)
	if err != nil {
		return err
	}
	lines := make([]accounting.LineInput, 0, 2)
	if payment.Direction == payments.DirectionIncoming {
		lines = append(lines,
			accounting.LineInput{AccountNumber: treasury.Number, Label: "Payment " + payment.Target.Number, Debit: payment.Amount},
			accounting.LineInput{AccountNumber: counterpart.Number, Label: "Settlement " + payment.Target.Number, Credit: payment.Amount},
		)
	} else {
		lines = append(lines,
			accounting.LineInput{AccountNumber: counterpart.Number, Label: "Settlement " + payment.Target.Number, Debit: payment.Amount},
			accounting.LineInput{AccountNumber: treasury.Number, Label: "Payment " + payment.Target.Number, Credit: payment.Amount},
		)
	}
	posted, err := h.post(ctx, accounting.PostingInput{
		Date:        evt.Date,
		JournalCode: h.journals.Treasury,
		Label:       fmt.Sprintf("Payment %s", payment.Target.Number),
		Lines:       lines,
		Origin:      documents.Ref{Kind: documents.RefKindPayment, ID: payment.ID, Number: payment.Target.Number},
		PostedBy:    evt.Actor,
	})
	if err != nil || !posted {
		return err
	}
	if _, err := h.book.Apply(ctx, evt.PaymentID, evt.Actor); err != nil {
		return err
	}
	if h.obs != nil {
		h.obs.PaymentApplied()
	}
	return nil
}
