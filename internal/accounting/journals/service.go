package journals

import (
	"context"
	"errors"
	"strings"
)

// Service administers the journal registry.
type Service struct {
	repo Repository
}

// NewService builds the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput carries journal creation fields.
type CreateInput struct {
	Code  string
	Label string
	Type  Type
}

// Create registers a new journal with its sequence starting at 1.
func (s *Service) Create(ctx context.Context, input CreateInput) (Journal, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" || len(code) > 8 {
		return Journal{}, errors.New("journals: code must be 1-8 characters")
	}
	if !ValidType(input.Type) {
		return Journal{}, ErrInvalidType
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return Journal{}, errors.New("journals: label required")
	}
	return s.repo.Insert(ctx, Journal{Code: code, Label: label, Type: input.Type})
}

// GetByCode resolves one journal.
func (s *Service) GetByCode(ctx context.Context, code string) (Journal, error) {
	return s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// List returns all journals ordered by code.
func (s *Service) List(ctx context.Context) ([]Journal, error) {
	return s.repo.List(ctx)
}
