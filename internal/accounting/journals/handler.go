package journals

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the journal registry.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/journals", h.handleCreate)
	r.Get("/journals", h.handleList)
	r.Get("/journals/{code}", h.handleGet)
}

type createJournalRequest struct {
	Code  string `json:"code" validate:"required"`
	Label string `json:"label" validate:"required"`
	Type  string `json:"type" validate:"required"`
}

type journalResponse struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Type    string `json:"type"`
	NextSeq int64  `json:"next_seq"`
}

func toJournalResponse(j Journal) journalResponse {
	return journalResponse{Code: j.Code, Label: j.Label, Type: string(j.Type), NextSeq: j.NextSeq}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createJournalRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.Create(r.Context(), CreateInput{Code: req.Code, Label: req.Label, Type: Type(req.Type)})
	if err != nil {
		h.logger.Warn("journal create failed", slog.String("code", req.Code), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(journal))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	out := make([]journalResponse, 0, len(list))
	for _, j := range list {
		out = append(out, toJournalResponse(j))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	journal, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(journal))
}

func categorize(err error) error {
	switch {
	case errors.Is(err, ErrJournalNotFound):
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicateCode):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, ErrInvalidType):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	default:
		return err
	}
}
