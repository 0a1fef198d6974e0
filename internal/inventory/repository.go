package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction,
// replaying serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListMovements returns the stock card for one location, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, qty, kind, unit_cost, value, origin_kind, origin_id, origin_number, actor, moved_at
FROM stock_movements
WHERE product_id=$1 AND warehouse_id=$2 AND moved_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY moved_at DESC, id DESC
LIMIT $5`, filter.ProductID, filter.WarehouseID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// GetProduct loads a product without locking it.
func (r *Repository) GetProduct(ctx context.Context, productID int64) (Product, error) {
	return getProduct(ctx, r.pool, productID, "")
}

// GetStock loads one warehouse quantity without locking it.
func (r *Repository) GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	return getStock(ctx, r.pool, productID, warehouseID, "")
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	return getProduct(ctx, r.tx, productID, " FOR UPDATE")
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	return getStock(ctx, r.tx, productID, warehouseID, " FOR UPDATE")
}

func (r *txRepository) UpsertStock(ctx context.Context, st Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stocks (product_id, warehouse_id, qty, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`,
		st.ProductID, st.WarehouseID, st.Qty)
	return err
}

func (r *txRepository) UpdateProductTotals(ctx context.Context, productID int64, qtyTotal, avgCost float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET qty_total=$2, avg_cost=$3, updated_at=NOW() WHERE id=$1`,
		productID, qtyTotal, avgCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, warehouse_id, qty, kind, unit_cost, value, origin_kind, origin_id, origin_number, actor, moved_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		mv.ProductID, mv.WarehouseID, mv.Qty, string(mv.Kind), mv.UnitCost, mv.Value,
		string(mv.Origin.Kind), mv.Origin.ID, mv.Origin.Number, mv.Actor, mv.At).Scan(&id)
	return id, err
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProduct(ctx context.Context, q queryer, productID int64, lock string) (Product, error) {
	var p Product
	err := q.QueryRow(ctx, `SELECT id, sku, stock_tracked, qty_total, avg_cost, updated_at FROM products WHERE id=$1`+lock, productID).
		Scan(&p.ID, &p.SKU, &p.StockTracked, &p.QtyTotal, &p.AvgCost, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func getStock(ctx context.Context, q queryer, productID, warehouseID int64, lock string) (Stock, error) {
	var st Stock
	err := q.QueryRow(ctx, `SELECT product_id, warehouse_id, qty, updated_at FROM stocks WHERE product_id=$1 AND warehouse_id=$2`+lock, productID, warehouseID).
		Scan(&st.ProductID, &st.WarehouseID, &st.Qty, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, ErrStockNotFound
	}
	if err != nil {
		return Stock{}, err
	}
	return st, nil
}

func scanMovement(rows pgx.Rows) (Movement, error) {
	var mv Movement
	var kind, originKind string
	err := rows.Scan(&mv.ID, &mv.ProductID, &mv.WarehouseID, &mv.Qty, &kind, &mv.UnitCost, &mv.Value,
		&originKind, &mv.Origin.ID, &mv.Origin.Number, &mv.Actor, &mv.At)
	if err != nil {
		return Movement{}, err
	}
	mv.Kind = MovementKind(kind)
	mv.Origin.Kind = documents.RefKind(originKind)
	return mv, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
