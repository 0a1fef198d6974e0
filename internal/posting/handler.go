package posting

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting"
	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler accepts document posting requests and runs them through the
// hooks.
type Handler struct {
	logger *slog.Logger
	hooks  *Hooks
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, hooks *Hooks) *Handler {
	return &Handler{logger: logger, hooks: hooks}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/postings/sales-invoices", h.handleSalesInvoice)
	r.Post("/postings/purchase-receipts", h.handlePurchaseReceipt)
	r.Post("/postings/delivery-notes", h.handleDeliveryNote)
	r.Post("/postings/payments", h.handlePayment)
}

type pricingLineRequest struct {
	Quantity      float64 `json:"quantity"`
	UnitPriceHT   float64 `json:"unit_price_ht"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	TaxRatePct    float64 `json:"tax_rate_pct"`
}

type salesInvoiceRequest struct {
	ID       uuid.UUID            `json:"id" validate:"required"`
	Number   string               `json:"number" validate:"required"`
	Date     time.Time            `json:"date" validate:"required"`
	DueDate  time.Time            `json:"due_date" validate:"required"`
	Customer string               `json:"customer" validate:"required"`
	Lines    []pricingLineRequest `json:"lines" validate:"required,min=1"`
	Actor    string               `json:"actor" validate:"required"`
}

func (h *Handler) handleSalesInvoice(w http.ResponseWriter, r *http.Request) {
	var req salesInvoiceRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	evt := SalesInvoicePostedEvent{
		ID:       req.ID,
		Number:   req.Number,
		Date:     req.Date,
		DueDate:  req.DueDate,
		Customer: req.Customer,
		Actor:    req.Actor,
	}
	for _, line := range req.Lines {
		evt.Lines = append(evt.Lines, documents.Line{
			Quantity:      line.Quantity,
			UnitPriceHT:   line.UnitPriceHT,
			DiscountType:  documents.DiscountType(line.DiscountType),
			DiscountValue: line.DiscountValue,
			TaxRatePct:    line.TaxRatePct,
		})
	}
	if err := h.hooks.HandleSalesInvoicePosted(r.Context(), evt); err != nil {
		h.logger.Warn("sales invoice posting failed", slog.String("number", req.Number), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "posted", "number": req.Number})
}

type purchaseLineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	WarehouseID int64   `json:"warehouse_id" validate:"required"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
	TaxRatePct  float64 `json:"tax_rate_pct" validate:"gte=0"`
}

type purchaseReceiptRequest struct {
	ID       uuid.UUID             `json:"id" validate:"required"`
	Number   string                `json:"number" validate:"required"`
	Date     time.Time             `json:"date" validate:"required"`
	DueDate  time.Time             `json:"due_date" validate:"required"`
	Supplier string                `json:"supplier" validate:"required"`
	Lines    []purchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
	Actor    string                `json:"actor" validate:"required"`
}

func (h *Handler) handlePurchaseReceipt(w http.ResponseWriter, r *http.Request) {
	var req purchaseReceiptRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	evt := PurchaseReceiptPostedEvent{
		ID:       req.ID,
		Number:   req.Number,
		Date:     req.Date,
		DueDate:  req.DueDate,
		Supplier: req.Supplier,
		Actor:    req.Actor,
	}
	for _, line := range req.Lines {
		evt.Lines = append(evt.Lines, PurchaseLine(line))
	}
	if err := h.hooks.HandlePurchaseReceiptPosted(r.Context(), evt); err != nil {
		h.logger.Warn("purchase receipt posting failed", slog.String("number", req.Number), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "posted", "number": req.Number})
}

type issueLineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	WarehouseID int64   `json:"warehouse_id" validate:"required"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
}

type deliveryNoteRequest struct {
	ID     uuid.UUID          `json:"id" validate:"required"`
	Number string             `json:"number" validate:"required"`
	Date   time.Time          `json:"date" validate:"required"`
	Lines  []issueLineRequest `json:"lines" validate:"required,min=1,dive"`
	Actor  string             `json:"actor" validate:"required"`
}

func (h *Handler) handleDeliveryNote(w http.ResponseWriter, r *http.Request) {
	var req deliveryNoteRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	evt := DeliveryNotePostedEvent{
		ID:     req.ID,
		Number: req.Number,
		Date:   req.Date,
		Actor:  req.Actor,
	}
	for _, line := range req.Lines {
		evt.Lines = append(evt.Lines, IssueLine(line))
	}
	if err := h.hooks.HandleDeliveryNotePosted(r.Context(), evt); err != nil {
		h.logger.Warn("delivery note posting failed", slog.String("number", req.Number), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "posted", "number": req.Number})
}

type paymentPostingRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	Actor     string    `json:"actor" validate:"required"`
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentPostingRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	evt := PaymentValidatedEvent{PaymentID: req.PaymentID, Date: req.Date, Actor: req.Actor}
	if err := h.hooks.HandlePaymentValidated(r.Context(), evt); err != nil {
		h.logger.Warn("payment posting failed", slog.String("payment_id", req.PaymentID.String()), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "posted"})
}

func categorize(err error) error {
	switch {
	case errors.Is(err, accounts.ErrMissingConfiguration):
		return fmt.Errorf("%w: %s", httpx.ErrConfiguration, err)
	case errors.Is(err, accounting.ErrUnbalanced), errors.Is(err, inventory.ErrInvalidQuantity):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.Is(err, accounting.ErrPeriodLocked),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrNoStockAtLocation),
		errors.Is(err, payments.ErrNotPending):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, accounts.ErrAccountNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, payments.ErrPaymentNotFound):
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	default:
		return err
	}
}
