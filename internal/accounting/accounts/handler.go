package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the account registry.
type Handler struct {
	logger  *slog.Logger
	service *Registry
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Registry) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts", h.handleCreate)
	r.Get("/accounts", h.handleList)
	r.Get("/accounts/{number}", h.handleGet)
	r.Get("/accounts/defaults/{role}", h.handleResolveDefault)
}

type createAccountRequest struct {
	Number string `json:"number" validate:"required"`
	Label  string `json:"label" validate:"required"`
}

type accountResponse struct {
	Number      string  `json:"number"`
	Label       string  `json:"label"`
	Class       int     `json:"class"`
	Nature      string  `json:"nature"`
	TotalDebit  float64 `json:"total_debit"`
	TotalCredit float64 `json:"total_credit"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		Number:      a.Number,
		Label:       a.Label,
		Class:       a.Class,
		Nature:      string(a.Nature),
		TotalDebit:  a.TotalDebit,
		TotalCredit: a.TotalCredit,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Create(r.Context(), CreateInput{Number: req.Number, Label: req.Label})
	if err != nil {
		h.logger.Warn("account create failed", slog.String("number", req.Number), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleResolveDefault(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.ResolveDefault(r.Context(), DefaultRole(chi.URLParam(r, "role")))
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func categorize(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicateNumber):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, ErrMissingConfiguration):
		return fmt.Errorf("%w: %s", httpx.ErrConfiguration, err)
	case errors.Is(err, ErrInvalidNumber):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	default:
		return err
	}
}
