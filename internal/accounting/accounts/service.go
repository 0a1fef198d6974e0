package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Registry resolves and administers chart-of-accounts entries. Lookups
// by number go through a read-through cache since posting flows resolve
// the same handful of accounts on every document.
type Registry struct {
	repo     Repository
	cache    *Cache
	defaults Defaults
}

// NewRegistry builds the registry. Defaults must already be validated;
// construction fails otherwise so a misconfigured deployment dies at
// startup instead of at first posting.
func NewRegistry(repo Repository, cache *Cache, defaults Defaults) (*Registry, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Registry{repo: repo, cache: cache, defaults: defaults}, nil
}

// CreateInput carries the settable account fields. Nature and class are
// derived, not accepted.
type CreateInput struct {
	Number string
	Label  string
}

// Create registers a new account.
func (r *Registry) Create(ctx context.Context, input CreateInput) (Account, error) {
	class, err := ClassOf(input.Number)
	if err != nil {
		return Account{}, err
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return Account{}, errors.New("accounts: label required")
	}
	account := Account{
		Number: input.Number,
		Label:  label,
		Class:  class,
		Nature: NatureOf(class),
	}
	created, err := r.repo.Insert(ctx, account)
	if err != nil {
		return Account{}, err
	}
	r.cache.Invalidate(ctx, created.Number)
	return created, nil
}

// GetByNumber resolves one account, serving repeated lookups from cache.
func (r *Registry) GetByNumber(ctx context.Context, number string) (Account, error) {
	if !ValidNumber(number) {
		return Account{}, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	return r.cache.Fetch(ctx, number, func(ctx context.Context) (Account, error) {
		return r.repo.GetByNumber(ctx, number)
	})
}

// ResolveDefault returns the account configured for a posting role.
// A configured number pointing at a non-existent account is still a
// configuration failure, not a not-found: the operator has to fix setup.
func (r *Registry) ResolveDefault(ctx context.Context, role DefaultRole) (Account, error) {
	number, err := r.defaults.NumberForRole(role)
	if err != nil {
		return Account{}, err
	}
	account, err := r.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, fmt.Errorf("%w: role %s -> missing account %s", ErrMissingConfiguration, role, number)
		}
		return Account{}, err
	}
	return account, nil
}

// List returns the chart ordered by number.
func (r *Registry) List(ctx context.Context) ([]Account, error) {
	return r.repo.List(ctx)
}

// InvalidateCached drops cached copies after balance updates. The
// ledger engine calls this once per posted entry.
func (r *Registry) InvalidateCached(ctx context.Context, numbers ...string) {
	for _, number := range numbers {
		r.cache.Invalidate(ctx, number)
	}
}

// cacheTTL bounds staleness of the number lookup cache.
const cacheTTL = 10 * time.Minute
