package journals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts journal persistence.
type Repository interface {
	Insert(ctx context.Context, journal Journal) (Journal, error)
	GetByCode(ctx context.Context, code string) (Journal, error)
	List(ctx context.Context) ([]Journal, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, journal Journal) (Journal, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO journals (code, label, type, next_seq, created_at, updated_at)
VALUES ($1, $2, $3, 1, NOW(), NOW())
RETURNING id, next_seq, created_at, updated_at`, journal.Code, journal.Label, string(journal.Type)).
		Scan(&journal.ID, &journal.NextSeq, &journal.CreatedAt, &journal.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Journal{}, ErrDuplicateCode
		}
		return Journal{}, err
	}
	return journal, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (Journal, error) {
	var j Journal
	var jType string
	err := r.db.QueryRow(ctx, `SELECT id, code, label, type, next_seq, created_at, updated_at FROM journals WHERE code=$1`, code).
		Scan(&j.ID, &j.Code, &j.Label, &jType, &j.NextSeq, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, err
	}
	j.Type = Type(jType)
	return j, nil
}

func (r *repository) List(ctx context.Context) ([]Journal, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, label, type, next_seq, created_at, updated_at FROM journals ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var journals []Journal
	for rows.Next() {
		var j Journal
		var jType string
		if err := rows.Scan(&j.ID, &j.Code, &j.Label, &jType, &j.NextSeq, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Type = Type(jType)
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

// NextSequence atomically claims the next piece number for a journal
// within the caller's transaction. The single UPDATE ... RETURNING is
// the fetch-and-increment: two concurrent postings on the same journal
// serialise on the row lock and can never see the same value.
func NextSequence(ctx context.Context, tx pgx.Tx, code string) (int64, error) {
	var seq int64
	err := tx.QueryRow(ctx, `UPDATE journals SET next_seq = next_seq + 1, updated_at = NOW() WHERE code=$1 RETURNING next_seq - 1`, code).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrJournalNotFound
		}
		return 0, err
	}
	return seq, nil
}
