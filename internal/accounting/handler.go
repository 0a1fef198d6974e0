package accounting

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for ledger entries.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handlePost)
	r.Get("/entries", h.handleList)
	r.Get("/entries/{id}", h.handleGet)
	r.Post("/entries/{id}/void", h.handleVoid)
}

type entryLineRequest struct {
	AccountNumber string  `json:"account_number" validate:"required"`
	Label         string  `json:"label"`
	Debit         float64 `json:"debit"`
	Credit        float64 `json:"credit"`
}

type postEntryRequest struct {
	PieceNumber string             `json:"piece_number"`
	Date        time.Time          `json:"date" validate:"required"`
	JournalCode string             `json:"journal_code" validate:"required"`
	Label       string             `json:"label" validate:"required"`
	OriginKind  string             `json:"origin_kind" validate:"required"`
	OriginID    uuid.UUID          `json:"origin_id" validate:"required"`
	OriginRef   string             `json:"origin_number" validate:"required"`
	Lines       []entryLineRequest `json:"lines" validate:"required,min=2,dive"`
	PostedBy    string             `json:"posted_by" validate:"required"`
}

type entryLineResponse struct {
	AccountNumber string  `json:"account_number"`
	Label         string  `json:"label"`
	Debit         float64 `json:"debit"`
	Credit        float64 `json:"credit"`
}

type entryResponse struct {
	ID          int64               `json:"id"`
	PieceNumber string              `json:"piece_number"`
	Sequence    int64               `json:"sequence"`
	JournalCode string              `json:"journal_code"`
	Date        time.Time           `json:"date"`
	Label       string              `json:"label"`
	OriginKind  string              `json:"origin_kind"`
	OriginID    uuid.UUID           `json:"origin_id"`
	OriginRef   string              `json:"origin_number"`
	Status      string              `json:"status"`
	PostedBy    string              `json:"posted_by"`
	Lines       []entryLineResponse `json:"lines"`
}

func toEntryResponse(e Entry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		PieceNumber: e.PieceNumber,
		Sequence:    e.Sequence,
		JournalCode: e.JournalCode,
		Date:        e.Date,
		Label:       e.Label,
		OriginKind:  string(e.Origin.Kind),
		OriginID:    e.Origin.ID,
		OriginRef:   e.Origin.Number,
		Status:      string(e.Status),
		PostedBy:    e.PostedBy,
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, entryLineResponse{
			AccountNumber: line.AccountNumber,
			Label:         line.Label,
			Debit:         line.Debit,
			Credit:        line.Credit,
		})
	}
	return resp
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := PostingInput{
		PieceNumber: req.PieceNumber,
		Date:        req.Date,
		JournalCode: req.JournalCode,
		Label:       req.Label,
		Origin:      documents.Ref{Kind: documents.RefKind(req.OriginKind), ID: req.OriginID, Number: req.OriginRef},
		PostedBy:    req.PostedBy,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountNumber: line.AccountNumber,
			Label:         line.Label,
			Debit:         line.Debit,
			Credit:        line.Credit,
		})
	}
	entry, err := h.service.PostEntry(r.Context(), input)
	if err != nil {
		h.logger.Warn("entry post failed",
			slog.String("journal", req.JournalCode),
			slog.String("origin", req.OriginRef),
			slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

type voidEntryRequest struct {
	Actor  string `json:"actor" validate:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid entry id", httpx.ErrValidation))
		return
	}
	var req voidEntryRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reversal, err := h.service.VoidEntry(r.Context(), VoidInput{EntryID: id, Actor: req.Actor, Reason: req.Reason})
	if err != nil {
		h.logger.Warn("entry void failed", slog.Int64("entry_id", id), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid entry id", httpx.ErrValidation))
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid limit", httpx.ErrValidation))
			return
		}
		limit = n
	}
	entries, err := h.service.ListEntries(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func categorize(err error) error {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	case errors.Is(err, ErrAlreadyPosted), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrPeriodLocked):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines), errors.Is(err, ErrEmptyEntry), errors.Is(err, documents.ErrUnknownRefKind):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.Is(err, accounts.ErrMissingConfiguration):
		return fmt.Errorf("%w: %s", httpx.ErrConfiguration, err)
	case errors.Is(err, accounts.ErrAccountNotFound):
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	default:
		return err
	}
}
