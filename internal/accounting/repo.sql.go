package accounting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists ledger entries in PostgreSQL.
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
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetEntryWithLines loads one entry and its lines outside a transaction.
func (r *Repository) GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error) {
	return getEntryWithLines(ctx, r.pool, entryID)
}

// ListEntries returns recent entries without lines, newest first.
func (r *Repository) ListEntries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, piece_number, sequence, journal_code, entry_date, label, origin_kind, origin_id, origin_number, status, posted_by, created_at
FROM ledger_entries ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextSequence(ctx context.Context, journalCode string) (int64, error) {
	return journals.NextSequence(ctx, r.tx, journalCode)
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (piece_number, sequence, journal_code, entry_date, label, origin_kind, origin_id, origin_number, status, posted_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW()) RETURNING id`,
		entry.PieceNumber, entry.Sequence, entry.JournalCode, entry.Date, entry.Label,
		string(entry.Origin.Kind), entry.Origin.ID, entry.Origin.Number, string(entry.Status), entry.PostedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_lines (entry_id, account_number, label, debit, credit)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountNumber, line.Label, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) MarkOriginPosted(ctx context.Context, origin documents.Ref, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO posted_origins (origin_kind, origin_id, entry_id, created_at)
VALUES ($1,$2,$3,NOW())`, string(origin.Kind), origin.ID, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyPosted
		}
		return err
	}
	return nil
}

func (r *txRepository) ReleaseOrigin(ctx context.Context, origin documents.Ref) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM posted_origins WHERE origin_kind=$1 AND origin_id=$2`, string(origin.Kind), origin.ID)
	return err
}

func (r *txRepository) AccumulateAccountTotals(ctx context.Context, deltas []AccountDelta) error {
	for _, delta := range deltas {
		tag, err := r.tx.Exec(ctx, `UPDATE accounts SET total_debit = total_debit + $2, total_credit = total_credit + $3, updated_at = NOW()
WHERE number = $1`, delta.AccountNumber, delta.Debit, delta.Credit)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return accounts.ErrAccountNotFound
		}
	}
	return nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error) {
	return getEntryWithLines(ctx, r.tx, entryID)
}

func (r *txRepository) UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET status=$2 WHERE id=$1`, entryID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getEntryWithLines(ctx context.Context, q queryer, entryID int64) (Entry, error) {
	row := q.QueryRow(ctx, `SELECT id, piece_number, sequence, journal_code, entry_date, label, origin_kind, origin_id, origin_number, status, posted_by, created_at
FROM ledger_entries WHERE id=$1`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_number, label, debit, credit FROM ledger_lines WHERE entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountNumber, &line.Label, &line.Debit, &line.Credit); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	var kind, status string
	err := row.Scan(&entry.ID, &entry.PieceNumber, &entry.Sequence, &entry.JournalCode, &entry.Date, &entry.Label,
		&kind, &entry.Origin.ID, &entry.Origin.Number, &status, &entry.PostedBy, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	entry.Origin.Kind = documents.RefKind(kind)
	entry.Status = EntryStatus(status)
	return entry, nil
}
