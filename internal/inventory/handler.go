package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleMovement)
	r.Post("/transfers", h.handleTransfer)
	r.Get("/stock-card", h.handleStockCard)
	r.Get("/products/{id}", h.handleProduct)
	r.Get("/products/{id}/stock/{warehouse}", h.handleStock)
}

type movementRequest struct {
	ProductID    int64     `json:"product_id" validate:"required"`
	WarehouseID  int64     `json:"warehouse_id" validate:"required"`
	Qty          float64   `json:"qty"`
	Kind         string    `json:"kind" validate:"required"`
	UnitCost     float64   `json:"unit_cost"`
	OriginKind   string    `json:"origin_kind" validate:"required"`
	OriginID     uuid.UUID `json:"origin_id" validate:"required"`
	OriginNumber string    `json:"origin_number" validate:"required"`
	Actor        string    `json:"actor" validate:"required"`
}

type movementResponse struct {
	ID           int64     `json:"id"`
	ProductID    int64     `json:"product_id"`
	WarehouseID  int64     `json:"warehouse_id"`
	Qty          float64   `json:"qty"`
	Kind         string    `json:"kind"`
	UnitCost     float64   `json:"unit_cost"`
	Value        float64   `json:"value"`
	OriginKind   string    `json:"origin_kind"`
	OriginNumber string    `json:"origin_number"`
	Actor        string    `json:"actor"`
	At           time.Time `json:"at"`
}

func toMovementResponse(mv Movement) movementResponse {
	return movementResponse{
		ID:           mv.ID,
		ProductID:    mv.ProductID,
		WarehouseID:  mv.WarehouseID,
		Qty:          mv.Qty,
		Kind:         string(mv.Kind),
		UnitCost:     mv.UnitCost,
		Value:        mv.Value,
		OriginKind:   string(mv.Origin.Kind),
		OriginNumber: mv.Origin.Number,
		Actor:        mv.Actor,
		At:           mv.At,
	}
}

func (h *Handler) handleMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mv, err := h.service.RecordMovement(r.Context(), MovementInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Qty:         req.Qty,
		Kind:        MovementKind(req.Kind),
		UnitCost:    req.UnitCost,
		Origin:      documents.Ref{Kind: documents.RefKind(req.OriginKind), ID: req.OriginID, Number: req.OriginNumber},
		Actor:       req.Actor,
	})
	if err != nil {
		h.logger.Warn("movement rejected",
			slog.Int64("product_id", req.ProductID),
			slog.Int64("warehouse_id", req.WarehouseID),
			slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	if mv == nil {
		// Untracked product: accepted, nothing recorded.
		httpx.JSON(w, http.StatusNoContent, nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(*mv))
}

type transferRequest struct {
	ProductID    int64     `json:"product_id" validate:"required"`
	SrcWarehouse int64     `json:"src_warehouse" validate:"required"`
	DstWarehouse int64     `json:"dst_warehouse" validate:"required"`
	Qty          float64   `json:"qty" validate:"required,gt=0"`
	OriginKind   string    `json:"origin_kind" validate:"required"`
	OriginID     uuid.UUID `json:"origin_id" validate:"required"`
	OriginNumber string    `json:"origin_number" validate:"required"`
	Actor        string    `json:"actor" validate:"required"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	outMv, inMv, err := h.service.RecordTransfer(r.Context(), TransferInput{
		ProductID:    req.ProductID,
		SrcWarehouse: req.SrcWarehouse,
		DstWarehouse: req.DstWarehouse,
		Qty:          req.Qty,
		Origin:       documents.Ref{Kind: documents.RefKind(req.OriginKind), ID: req.OriginID, Number: req.OriginNumber},
		Actor:        req.Actor,
	})
	if err != nil {
		h.logger.Warn("transfer rejected", slog.Int64("product_id", req.ProductID), slog.Any("error", err))
		httpx.RespondError(w, categorize(err))
		return
	}
	if outMv == nil {
		httpx.JSON(w, http.StatusNoContent, nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]movementResponse{
		"out": toMovementResponse(*outMv),
		"in":  toMovementResponse(*inMv),
	})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := StockCardFilter{}
	var err error
	if filter.ProductID, err = strconv.ParseInt(q.Get("product_id"), 10, 64); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid product_id", httpx.ErrValidation))
		return
	}
	if filter.WarehouseID, err = strconv.ParseInt(q.Get("warehouse_id"), 10, 64); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid warehouse_id", httpx.ErrValidation))
		return
	}
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid from date", httpx.ErrValidation))
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid to date", httpx.ErrValidation))
			return
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	movements, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, mv := range movements {
		out = append(out, toMovementResponse(mv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid product id", httpx.ErrValidation))
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":            product.ID,
		"sku":           product.SKU,
		"stock_tracked": product.StockTracked,
		"qty_total":     product.QtyTotal,
		"avg_cost":      product.AvgCost,
	})
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid product id", httpx.ErrValidation))
		return
	}
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouse"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation))
		return
	}
	stock, err := h.service.GetStock(r.Context(), productID, warehouseID)
	if err != nil {
		httpx.RespondError(w, categorize(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":   stock.ProductID,
		"warehouse_id": stock.WarehouseID,
		"qty":          stock.Qty,
	})
}

func categorize(err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrStockNotFound):
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrNoStockAtLocation):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost), errors.Is(err, ErrUnknownKind), errors.Is(err, documents.ErrUnknownRefKind):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	default:
		return err
	}
}
