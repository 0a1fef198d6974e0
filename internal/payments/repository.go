package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists payments and allocations in PostgreSQL.
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
		return errors.New("payments repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, paymentSelect+` WHERE id=$1`, id))
}

func (r *Repository) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, paymentSelect+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ListOpenDocuments(ctx context.Context, direction Direction) ([]OpenDocument, error) {
	rows, err := r.pool.Query(ctx, openDocSelect+` WHERE direction=$1 AND paid_total < total_due ORDER BY due_date ASC, id ASC`, string(direction))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []OpenDocument{}
	for rows.Next() {
		doc, err := scanOpenDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payments (id, amount, direction, target_kind, target_id, target_number, status, method, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Amount, string(p.Direction), string(p.Target.Kind), p.Target.ID, p.Target.Number, string(p.Status), p.Method, p.CreatedAt)
	return err
}

func (r *txRepository) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, paymentSelect+` WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payments SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) InsertOpenDocument(ctx context.Context, doc OpenDocument) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO open_documents (id, ref_kind, ref_id, ref_number, direction, due_date, total_due, paid_total, settlement, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
		doc.ID, string(doc.Ref.Kind), doc.Ref.ID, doc.Ref.Number, string(doc.Direction), doc.DueDate, doc.TotalDue, doc.Paid, string(doc.Settlement))
	return err
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (OpenDocument, error) {
	return scanOpenDocument(r.tx.QueryRow(ctx, openDocSelect+` WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) InsertAllocation(ctx context.Context, paymentID uuid.UUID, alloc Allocation) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payment_allocations (payment_id, document_id, applied, created_at)
VALUES ($1,$2,$3,NOW())`, paymentID, alloc.DocumentID, alloc.Applied)
	return err
}

func (r *txRepository) SumAllocations(ctx context.Context, documentID uuid.UUID) (float64, error) {
	var paid float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(applied), 0) FROM payment_allocations WHERE document_id=$1`, documentID).Scan(&paid)
	return paid, err
}

func (r *txRepository) UpdateDocumentSettlement(ctx context.Context, id uuid.UUID, paid float64, status SettlementStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE open_documents SET paid_total=$2, settlement=$3, updated_at=NOW() WHERE id=$1`,
		id, paid, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

const paymentSelect = `SELECT id, amount, direction, target_kind, target_id, target_number, status, method, created_at FROM payments`

const openDocSelect = `SELECT id, ref_kind, ref_id, ref_number, direction, due_date, total_due, paid_total, settlement FROM open_documents`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var direction, targetKind, status string
	err := row.Scan(&p.ID, &p.Amount, &direction, &targetKind, &p.Target.ID, &p.Target.Number, &status, &p.Method, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Direction = Direction(direction)
	p.Target.Kind = documents.RefKind(targetKind)
	p.Status = Status(status)
	return p, nil
}

func scanOpenDocument(row pgx.Row) (OpenDocument, error) {
	var doc OpenDocument
	var refKind, direction, settlement string
	err := row.Scan(&doc.ID, &refKind, &doc.Ref.ID, &doc.Ref.Number, &direction, &doc.DueDate, &doc.TotalDue, &doc.Paid, &settlement)
	if errors.Is(err, pgx.ErrNoRows) {
		return OpenDocument{}, ErrDocumentNotFound
	}
	if err != nil {
		return OpenDocument{}, err
	}
	doc.Ref.Kind = documents.RefKind(refKind)
	doc.Direction = Direction(direction)
	doc.Settlement = SettlementStatus(settlement)
	return doc, nil
}
