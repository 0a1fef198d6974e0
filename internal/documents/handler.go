package documents

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the totals calculator over HTTP so front ends can
// preview document totals without posting anything.
type Handler struct{}

// NewHandler constructs Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/documents/totals", h.handleTotals)
}

type totalsLineRequest struct {
	Quantity      float64 `json:"quantity"`
	UnitPriceHT   float64 `json:"unit_price_ht"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	TaxRatePct    float64 `json:"tax_rate_pct"`
}

type totalsRequest struct {
	Lines []totalsLineRequest `json:"lines" validate:"required,min=1"`
}

type totalsResponse struct {
	ExTax    float64 `json:"total_ex_tax"`
	Discount float64 `json:"total_discount"`
	Tax      float64 `json:"total_tax"`
	WithTax  float64 `json:"total_with_tax"`
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	var req totalsRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]Line, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, Line{
			Quantity:      line.Quantity,
			UnitPriceHT:   line.UnitPriceHT,
			DiscountType:  DiscountType(line.DiscountType),
			DiscountValue: line.DiscountValue,
			TaxRatePct:    line.TaxRatePct,
		})
	}
	totals := ComputeTotals(lines)
	httpx.JSON(w, http.StatusOK, totalsResponse{
		ExTax:    totals.ExTax,
		Discount: totals.Discount,
		Tax:      totals.Tax,
		WithTax:  totals.WithTax,
	})
}
