package payments

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

type memoryRepo struct {
	payments    map[uuid.UUID]Payment
	docs        map[uuid.UUID]OpenDocument
	allocations []allocationRow
}

type allocationRow struct {
	paymentID  uuid.UUID
	documentID uuid.UUID
	applied    float64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		payments: make(map[uuid.UUID]Payment),
		docs:     make(map[uuid.UUID]OpenDocument),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) ListOpenDocuments(ctx context.Context, direction Direction) ([]OpenDocument, error) {
	var out []OpenDocument
	for _, doc := range r.docs {
		if doc.Direction == direction && doc.Paid < doc.TotalDue {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) error {
	tx.repo.payments[p.ID] = p
	return nil
}

func (tx *memoryTx) InsertOpenDocument(ctx context.Context, doc OpenDocument) error {
	tx.repo.docs[doc.ID] = doc
	return nil
}

func (tx *memoryTx) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error) {
	return tx.repo.GetPayment(ctx, id)
}

func (tx *memoryTx) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status Status) error {
	p, ok := tx.repo.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Status = status
	tx.repo.payments[id] = p
	return nil
}

func (tx *memoryTx) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (OpenDocument, error) {
	doc, ok := tx.repo.docs[id]
	if !ok {
		return OpenDocument{}, ErrDocumentNotFound
	}
	return doc, nil
}

func (tx *memoryTx) InsertAllocation(ctx context.Context, paymentID uuid.UUID, alloc Allocation) error {
	tx.repo.allocations = append(tx.repo.allocations, allocationRow{paymentID: paymentID, documentID: alloc.DocumentID, applied: alloc.Applied})
	return nil
}

func (tx *memoryTx) SumAllocations(ctx context.Context, documentID uuid.UUID) (float64, error) {
	var sum float64
	for _, row := range tx.repo.allocations {
		if row.documentID == documentID {
			sum += row.applied
		}
	}
	return sum, nil
}

func (tx *memoryTx) UpdateDocumentSettlement(ctx context.Context, id uuid.UUID, paid float64, status SettlementStatus) error {
	doc, ok := tx.repo.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Paid = paid
	doc.Settlement = status
	tx.repo.docs[id] = doc
	return nil
}

func paymentFixture() PaymentInput {
	return PaymentInput{
		Amount:    150,
		Direction: DirectionIncoming,
		Target:    documents.Ref{Kind: documents.RefKindPayment, ID: uuid.New(), Number: "PAY-1"},
		Method:    "bank_transfer",
		Actor:     "tester",
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	input := paymentFixture()
	input.Amount = 0
	_, err := svc.Register(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidAmount)

	input = paymentFixture()
	input.Direction = "SIDEWAYS"
	_, err = svc.Register(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidDirection)
}

func TestApplySettlesOldestFirst(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	older, err := svc.OpenDocument(ctx, openDoc(100, 0, -30))
	require.NoError(t, err)
	newer, err := svc.OpenDocument(ctx, openDoc(100, 0, -10))
	require.NoError(t, err)

	payment, err := svc.Register(ctx, paymentFixture())
	require.NoError(t, err)

	plan, err := svc.Apply(ctx, payment.ID, "tester")
	require.NoError(t, err)
	require.InDelta(t, 0.0, plan.Leftover, 0.001)

	oldDoc := repo.docs[older.ID]
	require.InDelta(t, 100.0, oldDoc.Paid, 0.001)
	require.Equal(t, SettlementPaid, oldDoc.Settlement)

	newDoc := repo.docs[newer.ID]
	require.InDelta(t, 50.0, newDoc.Paid, 0.001)
	require.Equal(t, SettlementPartiallyPaid, newDoc.Settlement)

	require.Equal(t, StatusValidated, repo.payments[payment.ID].Status)
}

func TestApplyLeftoverReported(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.OpenDocument(ctx, openDoc(100, 0, -30))
	require.NoError(t, err)
	_, err = svc.OpenDocument(ctx, openDoc(100, 0, -10))
	require.NoError(t, err)

	input := paymentFixture()
	input.Amount = 250
	payment, err := svc.Register(ctx, input)
	require.NoError(t, err)

	plan, err := svc.Apply(ctx, payment.ID, "tester")
	require.NoError(t, err)
	require.InDelta(t, 50.0, plan.Leftover, 0.001)
	for _, doc := range repo.docs {
		require.Equal(t, SettlementPaid, doc.Settlement)
	}
}

func TestApplyPlanClampsStaleAllocations(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	doc, err := svc.OpenDocument(ctx, openDoc(100, 0, -30))
	require.NoError(t, err)

	input := paymentFixture()
	input.Amount = 100
	first, err := svc.Register(ctx, input)
	require.NoError(t, err)
	second, err := svc.Register(ctx, input)
	require.NoError(t, err)

	// Both plans were built from the same snapshot, before either
	// payment touched the document.
	snapshot, err := svc.OpenDocuments(ctx, DirectionIncoming)
	require.NoError(t, err)
	firstPlan, err := Allocate(first.Amount, snapshot)
	require.NoError(t, err)
	secondPlan, err := Allocate(second.Amount, snapshot)
	require.NoError(t, err)

	applied, err := svc.ApplyPlan(ctx, first.ID, firstPlan, "tester")
	require.NoError(t, err)
	require.InDelta(t, 0.0, applied.Leftover, 0.001)

	applied, err = svc.ApplyPlan(ctx, second.ID, secondPlan, "tester")
	require.NoError(t, err)
	require.Empty(t, applied.Allocations)
	require.InDelta(t, 100.0, applied.Leftover, 0.001)

	settled := repo.docs[doc.ID]
	require.InDelta(t, 100.0, settled.Paid, 0.001)
	require.Equal(t, SettlementPaid, settled.Settlement)
}

func TestApplyPlanPartialStaleAllocation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	doc, err := svc.OpenDocument(ctx, openDoc(100, 0, -30))
	require.NoError(t, err)

	snapshot, err := svc.OpenDocuments(ctx, DirectionIncoming)
	require.NoError(t, err)

	input := paymentFixture()
	input.Amount = 60
	first, err := svc.Register(ctx, input)
	require.NoError(t, err)
	second, err := svc.Register(ctx, input)
	require.NoError(t, err)

	firstPlan, err := Allocate(first.Amount, snapshot)
	require.NoError(t, err)
	secondPlan, err := Allocate(second.Amount, snapshot)
	require.NoError(t, err)

	_, err = svc.ApplyPlan(ctx, first.ID, firstPlan, "tester")
	require.NoError(t, err)

	// Only 40 is still open; the remaining 20 must surface as leftover.
	applied, err := svc.ApplyPlan(ctx, second.ID, secondPlan, "tester")
	require.NoError(t, err)
	require.Len(t, applied.Allocations, 1)
	require.InDelta(t, 40.0, applied.Allocations[0].Applied, 0.001)
	require.InDelta(t, 20.0, applied.Leftover, 0.001)

	settled := repo.docs[doc.ID]
	require.InDelta(t, 100.0, settled.Paid, 0.001)
	require.Equal(t, SettlementPaid, settled.Settlement)
}

func TestApplyTwiceRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.OpenDocument(ctx, openDoc(200, 0, -30))
	require.NoError(t, err)

	payment, err := svc.Register(ctx, paymentFixture())
	require.NoError(t, err)

	_, err = svc.Apply(ctx, payment.ID, "tester")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, payment.ID, "tester")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestVoidPendingOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	payment, err := svc.Register(ctx, paymentFixture())
	require.NoError(t, err)

	require.NoError(t, svc.Void(ctx, payment.ID, "tester"))
	require.Equal(t, StatusVoid, repo.payments[payment.ID].Status)

	require.ErrorIs(t, svc.Void(ctx, payment.ID, "tester"), ErrNotPending)
}

func TestAgingBuckets(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	now := time.Now()
	mk := func(due time.Time, amount float64) {
		_, err := svc.OpenDocument(ctx, OpenDocument{
			Ref:       documents.Ref{Kind: documents.RefKindInvoice, ID: uuid.New(), Number: "FA-X"},
			Direction: DirectionIncoming,
			DueDate:   due,
			TotalDue:  amount,
		})
		require.NoError(t, err)
	}
	mk(now.AddDate(0, 0, 10), 100)  // not yet due
	mk(now.AddDate(0, 0, -15), 50)  // 30 bucket
	mk(now.AddDate(0, 0, -45), 75)  // 60 bucket
	mk(now.AddDate(0, 0, -200), 25) // 120 bucket

	buckets, err := svc.Aging(ctx, DirectionIncoming, now)
	require.NoError(t, err)
	require.InDelta(t, 100.0, buckets.Current, 0.001)
	require.InDelta(t, 50.0, buckets.Bucket30, 0.001)
	require.InDelta(t, 75.0, buckets.Bucket60, 0.001)
	require.InDelta(t, 0.0, buckets.Bucket90, 0.001)
	require.InDelta(t, 25.0, buckets.Bucket120, 0.001)
}
