package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	ListPayments(ctx context.Context, limit int) ([]Payment, error)
	// ListOpenDocuments returns unsettled documents for a direction,
	// oldest due date first.
	ListOpenDocuments(ctx context.Context, direction Direction) ([]OpenDocument, error)
}

// TxRepository exposes the operations available inside an allocation
// transaction.
type TxRepository interface {
	InsertPayment(ctx context.Context, p Payment) error
	InsertOpenDocument(ctx context.Context, doc OpenDocument) error
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status Status) error
	GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (OpenDocument, error)
	InsertAllocation(ctx context.Context, paymentID uuid.UUID, alloc Allocation) error
	SumAllocations(ctx context.Context, documentID uuid.UUID) (float64, error)
	UpdateDocumentSettlement(ctx context.Context, id uuid.UUID, paid float64, status SettlementStatus) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service registers payments and applies allocation plans.
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

// Register records a new pending payment.
func (s *Service) Register(ctx context.Context, input PaymentInput) (Payment, error) {
	if err := input.Validate(); err != nil {
		return Payment{}, err
	}
	p := Payment{
		ID:        uuid.New(),
		Amount:    input.Amount,
		Direction: input.Direction,
		Target:    input.Target,
		Status:    StatusPending,
		Method:    input.Method,
		CreatedAt: s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertPayment(ctx, p)
	})
	if err != nil {
		return Payment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    input.Actor,
			Action:   "payments.register",
			Entity:   "payment",
			EntityID: p.ID.String(),
			Meta:     map[string]any{"amount": p.Amount, "direction": string(p.Direction), "method": p.Method},
		})
	}
	return p, nil
}

// Apply spreads a pending payment over the open documents of its
// direction, oldest due date first, and settles the touched documents
// in one transaction. The returned plan reports any leftover; a
// leftover is never applied anywhere on its own.
func (s *Service) Apply(ctx context.Context, paymentID uuid.UUID, actor string) (Plan, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return Plan{}, err
	}
	docs, err := s.repo.ListOpenDocuments(ctx, payment.Direction)
	if err != nil {
		return Plan{}, err
	}
	plan, err := Allocate(payment.Amount, docs)
	if err != nil {
		return Plan{}, err
	}
	return s.ApplyPlan(ctx, paymentID, plan, actor)
}

// ApplyPlan applies a pre-computed allocation plan to a pending
// payment and returns the plan as actually applied. Callers with their
// own priority policy build the plan via Allocate and hand it in here.
// The plan was built from a snapshot that may be stale by the time the
// documents are locked, so each allocation is re-clamped to the
// document's remaining balance inside the transaction; whatever the
// documents could not absorb ends up in the returned leftover. Each
// touched document's paid amount is recomputed from the full
// allocation history rather than incremented, so a replayed or
// repaired allocation row cannot drift the balance.
func (s *Service) ApplyPlan(ctx context.Context, paymentID uuid.UUID, plan Plan, actor string) (Plan, error) {
	var applied Plan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// The closure may be retried after a serialization conflict;
		// rebuild the effective plan from scratch each attempt.
		applied = Plan{Allocations: []Allocation{}, Leftover: plan.Leftover}
		payment, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != StatusPending {
			return fmt.Errorf("%w: %s", ErrNotPending, payment.Status)
		}
		for _, alloc := range plan.Allocations {
			doc, err := tx.GetDocumentForUpdate(ctx, alloc.DocumentID)
			if err != nil {
				return err
			}
			paidBefore, err := tx.SumAllocations(ctx, doc.ID)
			if err != nil {
				return err
			}
			remaining := money.Round2(doc.TotalDue - paidBefore)
			amount := alloc.Applied
			if amount > remaining {
				amount = remaining
			}
			if amount <= 0 {
				applied.Leftover = money.Round2(applied.Leftover + alloc.Applied)
				continue
			}
			applied.Leftover = money.Round2(applied.Leftover + alloc.Applied - amount)
			if err := tx.InsertAllocation(ctx, paymentID, Allocation{DocumentID: doc.ID, Applied: amount}); err != nil {
				return err
			}
			paid, err := tx.SumAllocations(ctx, doc.ID)
			if err != nil {
				return err
			}
			if err := tx.UpdateDocumentSettlement(ctx, doc.ID, paid, SettlementOf(paid, doc.TotalDue)); err != nil {
				return err
			}
			applied.Allocations = append(applied.Allocations, Allocation{DocumentID: doc.ID, Applied: amount})
		}
		return tx.UpdatePaymentStatus(ctx, paymentID, StatusValidated)
	})
	if err != nil {
		return Plan{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "payments.apply",
			Entity:   "payment",
			EntityID: paymentID.String(),
			Meta:     map[string]any{"allocations": len(applied.Allocations), "leftover": applied.Leftover},
		})
	}
	return applied, nil
}

// Void cancels a pending payment before allocation.
func (s *Service) Void(ctx context.Context, paymentID uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != StatusPending {
			return fmt.Errorf("%w: %s", ErrNotPending, payment.Status)
		}
		return tx.UpdatePaymentStatus(ctx, paymentID, StatusVoid)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "payments.void",
			Entity:   "payment",
			EntityID: paymentID.String(),
		})
	}
	return nil
}

// OpenDocument registers a document balance a future payment can
// settle. Posting flows call this when an invoice or receipt becomes
// due.
func (s *Service) OpenDocument(ctx context.Context, doc OpenDocument) (OpenDocument, error) {
	if doc.TotalDue <= 0 {
		return OpenDocument{}, ErrInvalidAmount
	}
	if doc.Direction != DirectionIncoming && doc.Direction != DirectionOutgoing {
		return OpenDocument{}, ErrInvalidDirection
	}
	if err := doc.Ref.Validate(); err != nil {
		return OpenDocument{}, err
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Settlement = SettlementOf(doc.Paid, doc.TotalDue)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertOpenDocument(ctx, doc)
	})
	if err != nil {
		return OpenDocument{}, err
	}
	return doc, nil
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// List returns recent payments.
func (s *Service) List(ctx context.Context, limit int) ([]Payment, error) {
	return s.repo.ListPayments(ctx, limit)
}

// OpenDocuments lists unsettled documents for a direction, in default
// allocation order.
func (s *Service) OpenDocuments(ctx context.Context, direction Direction) ([]OpenDocument, error) {
	return s.repo.ListOpenDocuments(ctx, direction)
}

// Aging groups outstanding balances by days overdue at asOf.
func (s *Service) Aging(ctx context.Context, direction Direction, asOf time.Time) (AgingBuckets, error) {
	docs, err := s.repo.ListOpenDocuments(ctx, direction)
	if err != nil {
		return AgingBuckets{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	var buckets AgingBuckets
	for _, doc := range docs {
		balance := doc.Balance()
		if balance <= 0 {
			continue
		}
		days := int(asOf.Sub(doc.DueDate).Hours() / 24)
		switch {
		case days <= 0:
			buckets.Current += balance
		case days <= 30:
			buckets.Bucket30 += balance
		case days <= 60:
			buckets.Bucket60 += balance
		case days <= 90:
			buckets.Bucket90 += balance
		default:
			buckets.Bucket120 += balance
		}
	}
	return buckets, nil
}
