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

// LedgerIntegrityJob re-checks the double-entry invariants against the stored
// rows: every posted entry must balance and account running totals must match
// the sum of their posted lines.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the ledger integrity handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity checks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting ledger integrity check")

	unbalanced, err := j.unbalancedEntries(ctx)
	if err != nil {
		resultErr = err
		logger.Error("entry balance check failed", slog.Any("error", err))
		return resultErr
	}
	for _, e := range unbalanced {
		logger.Warn("unbalanced posted entry",
			slog.Int64("entry_id", e.EntryID),
			slog.String("piece_number", e.Piece),
			slog.Float64("debit", e.Debit),
			slog.Float64("credit", e.Credit),
		)
	}
	j.metrics().AddDiscrepancies("entry_balance", len(unbalanced))

	drifted, err := j.driftedAccounts(ctx)
	if err != nil {
		resultErr = err
		logger.Error("account totals check failed", slog.Any("error", err))
		return resultErr
	}
	for _, a := range drifted {
		logger.Warn("account totals drift",
			slog.String("account", a.Number),
			slog.Float64("stored_debit", a.StoredDebit),
			slog.Float64("line_debit", a.LineDebit),
			slog.Float64("stored_credit", a.StoredCredit),
			slog.Float64("line_credit", a.LineCredit),
		)
	}
	j.metrics().AddDiscrepancies("account_totals", len(drifted))

	logger.Info("completed ledger integrity check",
		slog.Int("unbalanced_entries", len(unbalanced)),
		slog.Int("drifted_accounts", len(drifted)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

type unbalancedEntry struct {
	EntryID int64
	Piece   string
	Debit   float64
	Credit  float64
}

func (j *LedgerIntegrityJob) unbalancedEntries(ctx context.Context) ([]unbalancedEntry, error) {
	if j.Pool == nil {
		return nil, errors.New("ledger integrity: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT e.id, e.piece_number, COALESCE(SUM(l.debit), 0)::double precision, COALESCE(SUM(l.credit), 0)::double precision
FROM ledger_entries e
JOIN ledger_lines l ON l.entry_id = e.id
WHERE e.status = 'POSTED'
GROUP BY e.id, e.piece_number
HAVING ABS(SUM(l.debit) - SUM(l.credit)) > 0.005
ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []unbalancedEntry
	for rows.Next() {
		var e unbalancedEntry
		if err := rows.Scan(&e.EntryID, &e.Piece, &e.Debit, &e.Credit); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type driftedAccount struct {
	Number       string
	StoredDebit  float64
	LineDebit    float64
	StoredCredit float64
	LineCredit   float64
}

func (j *LedgerIntegrityJob) driftedAccounts(ctx context.Context) ([]driftedAccount, error) {
	if j.Pool == nil {
		return nil, errors.New("ledger integrity: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT a.number,
	a.total_debit::double precision,
	COALESCE(p.debit, 0)::double precision,
	a.total_credit::double precision,
	COALESCE(p.credit, 0)::double precision
FROM accounts a
LEFT JOIN (
	SELECT l.account_number, SUM(l.debit) AS debit, SUM(l.credit) AS credit
	FROM ledger_lines l
	JOIN ledger_entries e ON e.id = l.entry_id
	WHERE e.status = 'POSTED'
	GROUP BY l.account_number
) p ON p.account_number = a.number
WHERE ABS(a.total_debit - COALESCE(p.debit, 0)) > 0.005
   OR ABS(a.total_credit - COALESCE(p.credit, 0)) > 0.005
ORDER BY a.number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []driftedAccount
	for rows.Next() {
		var a driftedAccount
		if err := rows.Scan(&a.Number, &a.StoredDebit, &a.LineDebit, &a.StoredCredit, &a.LineCredit); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
