package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter StockCardFilter) ([]Movement, error)
	GetProduct(ctx context.Context, productID int64) (Product, error)
	GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error)
}

// TxRepository exposes the operations available inside a movement
// transaction. Lock acquisition order is product first, then stock,
// so concurrent movements on one product serialize consistently.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (Product, error)
	GetStockForUpdate(ctx context.Context, productID, warehouseID int64) (Stock, error)
	UpsertStock(ctx context.Context, st Stock) error
	UpdateProductTotals(ctx context.Context, productID int64, qtyTotal, avgCost float64) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock movements and valuation.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordMovement applies one signed stock movement. Movements against
// products that are not stock tracked succeed as no-ops and return a
// nil movement. Either the movement fully applies, with both the
// warehouse quantity and the product totals updated, or nothing is
// persisted.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (*Movement, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	var out *Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		mv, err := s.applyMovement(ctx, tx, input)
		if err != nil {
			return err
		}
		out = mv
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		s.recordAudit(ctx, input.Actor, "inventory.move", out)
	}
	return out, nil
}

// RecordTransfer moves stock between warehouses as an OUT + IN pair in
// a single transaction, so a shortage at the source leaves the
// destination untouched.
func (s *Service) RecordTransfer(ctx context.Context, input TransferInput) (*Movement, *Movement, error) {
	if input.ProductID == 0 || input.SrcWarehouse == 0 || input.DstWarehouse == 0 {
		return nil, nil, errors.New("inventory: product and warehouses required")
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return nil, nil, errors.New("inventory: source and destination warehouse must differ")
	}
	if input.Qty <= 0 {
		return nil, nil, ErrInvalidQuantity
	}
	var outMv, inMv *Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		mv, err := s.applyMovement(ctx, tx, MovementInput{
			ProductID:   input.ProductID,
			WarehouseID: input.SrcWarehouse,
			Qty:         -input.Qty,
			Kind:        KindTransferOut,
			Origin:      input.Origin,
			Actor:       input.Actor,
		})
		if err != nil {
			return err
		}
		if mv == nil {
			return nil
		}
		outMv = mv
		// Transfer-in re-enters at the cost the goods left with, so
		// the transfer is value neutral for the product.
		inMv, err = s.applyMovement(ctx, tx, MovementInput{
			ProductID:   input.ProductID,
			WarehouseID: input.DstWarehouse,
			Qty:         input.Qty,
			Kind:        KindTransferIn,
			UnitCost:    mv.UnitCost,
			Origin:      input.Origin,
			Actor:       input.Actor,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if outMv != nil {
		s.recordAudit(ctx, input.Actor, "inventory.transfer", outMv)
	}
	return outMv, inMv, nil
}

// StockCard lists the movement history of one stock location, newest
// first.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	if filter.ProductID == 0 || filter.WarehouseID == 0 {
		return nil, errors.New("inventory: product and warehouse required")
	}
	return s.repo.ListMovements(ctx, filter)
}

// GetProduct returns the product with its aggregate quantity and
// average cost.
func (s *Service) GetProduct(ctx context.Context, productID int64) (Product, error) {
	return s.repo.GetProduct(ctx, productID)
}

// GetStock returns the quantity held at one warehouse.
func (s *Service) GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	return s.repo.GetStock(ctx, productID, warehouseID)
}

func (s *Service) applyMovement(ctx context.Context, tx TxRepository, input MovementInput) (*Movement, error) {
	product, err := tx.GetProductForUpdate(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.StockTracked {
		return nil, nil
	}

	stock, err := tx.GetStockForUpdate(ctx, input.ProductID, input.WarehouseID)
	switch {
	case errors.Is(err, ErrStockNotFound):
		if input.Qty < 0 {
			return nil, fmt.Errorf("%w: product %d warehouse %d", ErrNoStockAtLocation, input.ProductID, input.WarehouseID)
		}
		stock = Stock{ProductID: input.ProductID, WarehouseID: input.WarehouseID}
	case err != nil:
		return nil, err
	}

	newStockQty := stock.Qty + input.Qty
	newTotalQty := product.QtyTotal + input.Qty
	if newStockQty < 0 || newTotalQty < 0 {
		return nil, fmt.Errorf("%w: product %d warehouse %d has %v, requested %v",
			ErrInsufficientStock, input.ProductID, input.WarehouseID, stock.Qty, -input.Qty)
	}

	var unitCost, newAvg float64
	if input.Qty > 0 {
		unitCost = input.UnitCost
		newAvg = WeightedAverage(product.QtyTotal, product.AvgCost, input.Qty, unitCost)
	} else {
		unitCost = product.AvgCost
		newAvg = product.AvgCost
		if newTotalQty == 0 {
			newAvg = 0
		}
	}

	now := s.now()
	stock.Qty = newStockQty
	stock.UpdatedAt = now
	if err := tx.UpsertStock(ctx, stock); err != nil {
		return nil, err
	}
	if err := tx.UpdateProductTotals(ctx, input.ProductID, newTotalQty, newAvg); err != nil {
		return nil, err
	}
	mv := Movement{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Qty:         input.Qty,
		Kind:        input.Kind,
		UnitCost:    unitCost,
		Value:       MovementValue(input.Qty, unitCost),
		Origin:      input.Origin,
		Actor:       input.Actor,
		At:          now,
	}
	id, err := tx.InsertMovement(ctx, mv)
	if err != nil {
		return nil, err
	}
	mv.ID = id
	return &mv, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, mv *Movement) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d", mv.ID),
		Meta: map[string]any{
			"product_id":   mv.ProductID,
			"warehouse_id": mv.WarehouseID,
			"kind":         string(mv.Kind),
			"qty":          mv.Qty,
			"unit_cost":    mv.UnitCost,
			"value":        mv.Value,
		},
	})
}
