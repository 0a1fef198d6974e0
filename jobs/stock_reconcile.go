package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// StockReconcileJob verifies that each tracked product's cached total matches
// the sum of its per-warehouse rows, and flags negative stock.
type StockReconcileJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStockReconcileJob initialises the stock reconciliation handler.
func NewStockReconcileJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the reconciliation.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskStockReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting stock reconciliation")

	mismatched, err := j.mismatchedProducts(ctx)
	if err != nil {
		resultErr = err
		logger.Error("product totals check failed", slog.Any("error", err))
		return resultErr
	}
	for _, p := range mismatched {
		logger.Warn("product total drift",
			slog.Int64("product_id", p.ProductID),
			slog.String("sku", p.SKU),
			slog.Float64("qty_total", p.QtyTotal),
			slog.Float64("warehouse_sum", p.WarehouseSum),
		)
	}
	j.metrics().AddDiscrepancies("product_totals", len(mismatched))

	negative, err := j.negativeStocks(ctx)
	if err != nil {
		resultErr = err
		logger.Error("negative stock check failed", slog.Any("error", err))
		return resultErr
	}
	for _, s := range negative {
		logger.Warn("negative stock row",
			slog.Int64("product_id", s.ProductID),
			slog.Int64("warehouse_id", s.WarehouseID),
			slog.Float64("qty", s.Qty),
		)
	}
	j.metrics().AddDiscrepancies("negative_stock", len(negative))

	logger.Info("completed stock reconciliation",
		slog.Int("mismatched_products", len(mismatched)),
		slog.Int("negative_stocks", len(negative)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

type mismatchedProduct struct {
	ProductID    int64
	SKU          string
	QtyTotal     float64
	WarehouseSum float64
}

func (j *StockReconcileJob) mismatchedProducts(ctx context.Context) ([]mismatchedProduct, error) {
	if j.Pool == nil {
		return nil, errors.New("stock reconcile: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT p.id, p.sku, p.qty_total::double precision, COALESCE(s.total, 0)::double precision
FROM products p
LEFT JOIN (
	SELECT product_id, SUM(qty) AS total FROM stocks GROUP BY product_id
) s ON s.product_id = p.id
WHERE p.stock_tracked AND ABS(p.qty_total - COALESCE(s.total, 0)) > 0.0005
ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []mismatchedProduct
	for rows.Next() {
		var p mismatchedProduct
		if err := rows.Scan(&p.ProductID, &p.SKU, &p.QtyTotal, &p.WarehouseSum); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type negativeStock struct {
	ProductID   int64
	WarehouseID int64
	Qty         float64
}

func (j *StockReconcileJob) negativeStocks(ctx context.Context) ([]negativeStock, error) {
	if j.Pool == nil {
		return nil, errors.New("stock reconcile: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT product_id, warehouse_id, qty::double precision FROM stocks WHERE qty < 0 ORDER BY product_id, warehouse_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []negativeStock
	for rows.Next() {
		var s negativeStock
		if err := rows.Scan(&s.ProductID, &s.WarehouseID, &s.Qty); err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockReconcile))
	}
	return slog.Default().With(slog.String("job", TaskStockReconcile))
}

func (j *StockReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StockReconcileJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
