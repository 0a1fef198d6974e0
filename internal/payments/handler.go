package payments

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for payments and allocations.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.handleRegister)
	r.Get("/payments", h.handleList)
	r.Get("/payments/{id}", h.handleGet)
	r.Post("/payments/{id}/apply", h.handleApply)
	r.Post("/payments/{id}/void", h.handleVoid)
	r.Get("/open-documents", h.handleOpenDocuments)
	r.Get("/aging", h.handleAging)
}

type registerPaymentRequest struct {
	Amount       float64   `json:"amount" validate:"required,gt=0"`
	Direction    string    `json:"direction" validate:"required"`
	TargetKind   string    `json:"target_kind" validate:"required"`
	TargetID     uuid.UUID `json:"target_id" validate:"required"`
	TargetNumber string    `json:"target_number" validate:"required"`
	Method       string    `json:"method" validate:"required"`
	Actor        string    `json:"actor" validate:"required"`
}

type paymentResponse struct {
	ID           uuid.UUID `json:"id"`
	Amount       float64   `json:"amount"`
	Direction    string    `json:"direction"`
	TargetKind   string    `json:"target_kind"`
	TargetNumber string    `json:"target_number"`
	Status       string    `json:"status"`
	Method       string    `json:"method"`
	CreatedAt    time.Time `json:"created_at"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:           p.ID,
		Amount:       p.Amount,
		Direction:    string(p.Direction),
		TargetKind:   string(p.Target.Kind),
		TargetNumber: p.Target.Number,
		Status:       string(p.Status),
		Method:       p.Method,
		CreatedAt:    p.CreatedAt,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerPaymentRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.Register(r.Context(), PaymentInput{
		Amount:    req.Amount,
		Direction: Direction(req.Direction),
		Target:    documents.Ref{Kind: documents.RefKind(req.TargetKind), ID: req.TargetID, Number: req.TargetNumber},
		Method:    req.Method,
		Actor:     req.Actor,
	})
	if err != nil {
		h.logger.Warn("payment register failed", slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

type applyRequest struct {
	Actor string `json:"actor" validate:"required"`
}

type planResponse struct {
	Allocations []allocationResponse `json:"allocations"`
	Leftover    float64              `json:"leftover"`
}

type allocationResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	Applied    float64   `json:"applied"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid payment id", httpx.ErrValidation))
		return
	}
	var req applyRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.Apply(r.Context(), id, req.Actor)
	if err != nil {
		h.logger.Warn("payment apply failed", slog.String("payment_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	resp := planResponse{Allocations: []allocationResponse{}, Leftover: plan.Leftover}
	for _, alloc := range plan.Allocations {
		resp.Allocations = append(resp.Allocations, allocationResponse{DocumentID: alloc.DocumentID, Applied: alloc.Applied})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid payment id", httpx.ErrValidation))
		return
	}
	var req applyRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Void(r.Context(), id, req.Actor); err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid payment id", httpx.ErrValidation))
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid limit", httpx.ErrValidation))
			return
		}
		limit = n
	}
	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	out := make([]paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type openDocumentResponse struct {
	ID         uuid.UUID `json:"id"`
	RefKind    string    `json:"ref_kind"`
	RefNumber  string    `json:"ref_number"`
	Direction  string    `json:"direction"`
	DueDate    time.Time `json:"due_date"`
	TotalDue   float64   `json:"total_due"`
	Paid       float64   `json:"paid"`
	Balance    float64   `json:"balance"`
	Settlement string    `json:"settlement"`
}

func (h *Handler) handleOpenDocuments(w http.ResponseWriter, r *http.Request) {
	direction, err := parseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	docs, err := h.service.OpenDocuments(r.Context(), direction)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	out := make([]openDocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, openDocumentResponse{
			ID:         doc.ID,
			RefKind:    string(doc.Ref.Kind),
			RefNumber:  doc.Ref.Number,
			Direction:  string(doc.Direction),
			DueDate:    doc.DueDate,
			TotalDue:   doc.TotalDue,
			Paid:       doc.Paid,
			Balance:    doc.Balance(),
			Settlement: string(doc.Settlement),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	var err error
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid as_of date", httpx.ErrValidation))
			return
		}
	}
	if raw := r.URL.Query().Get("direction"); raw != "" {
		direction, err := parseDirection(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		buckets, err := h.service.Aging(r.Context(), direction, asOf)
		if err != nil {
			httpx.RespondError(w, categorize(err))
			return
		}
		httpx.JSON(w, http.StatusOK, buckets)
		return
	}

	// No direction requested: report both sides.
	var incoming, outgoing AgingBuckets
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		incoming, err = h.service.Aging(ctx, DirectionIncoming, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		outgoing, err = h.service.Aging(ctx, DirectionOutgoing, asOf)
		return err
	})
	if err := g.Wait(); err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]AgingBuckets{
		"incoming": incoming,
		"outgoing": outgoing,
	})
}

func parseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case DirectionIncoming, DirectionOutgoing:
		return Direction(raw), nil
	default:
		return "", fmt.Errorf("%w: direction must be INCOMING or OUTGOING", httpx.ErrValidation)
	}
}

func categorize(err error) error {
	switch {
	case errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrDocumentNotFound):
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	case errors.Is(err, ErrNotPending):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidDirection), errors.Is(err, documents.ErrUnknownRefKind):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	default:
		return err
	}
}
