package reports

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// AccountLister exposes the registry read used by the rollups.
type AccountLister interface {
	List(ctx context.Context) ([]accounts.Account, error)
}

// Handler serves report endpoints.
type Handler struct {
	logger   *slog.Logger
	registry AccountLister
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, registry AccountLister) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/trial-balance", h.handleTrialBalance)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	accts, err := h.registry.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, BuildTrialBalance(accts))
}
