package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts account persistence.
type Repository interface {
	Insert(ctx context.Context, account Account) (Account, error)
	GetByNumber(ctx context.Context, number string) (Account, error)
	List(ctx context.Context) ([]Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, account Account) (Account, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO accounts (number, label, class, nature, total_debit, total_credit, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, 0, NOW(), NOW())
RETURNING id, created_at, updated_at`, account.Number, account.Label, account.Class, string(account.Nature)).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateNumber
		}
		return Account{}, err
	}
	return account, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (Account, error) {
	var a Account
	var nature string
	err := r.db.QueryRow(ctx, `SELECT id, number, label, class, nature, total_debit, total_credit, created_at, updated_at
FROM accounts WHERE number=$1`, number).
		Scan(&a.ID, &a.Number, &a.Label, &a.Class, &nature, &a.TotalDebit, &a.TotalCredit, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	a.Nature = Nature(nature)
	return a, nil
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, number, label, class, nature, total_debit, total_credit, created_at, updated_at
FROM accounts ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		var nature string
		if err := rows.Scan(&a.ID, &a.Number, &a.Label, &a.Class, &nature, &a.TotalDebit, &a.TotalCredit, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Nature = Nature(nature)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
