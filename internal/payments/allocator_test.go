package payments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

func openDoc(totalDue, paid float64, dueInDays int) OpenDocument {
	return OpenDocument{
		ID:        uuid.New(),
		Ref:       documents.Ref{Kind: documents.RefKindInvoice, ID: uuid.New(), Number: "FA-1"},
		Direction: DirectionIncoming,
		DueDate:   time.Now().AddDate(0, 0, dueInDays),
		TotalDue:  totalDue,
		Paid:      paid,
	}
}

func TestAllocateSpreadsInOrder(t *testing.T) {
	docs := []OpenDocument{openDoc(100, 0, -30), openDoc(100, 0, -10)}

	plan, err := Allocate(150, docs)
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	require.Equal(t, docs[0].ID, plan.Allocations[0].DocumentID)
	require.InDelta(t, 100.0, plan.Allocations[0].Applied, 0.001)
	require.Equal(t, docs[1].ID, plan.Allocations[1].DocumentID)
	require.InDelta(t, 50.0, plan.Allocations[1].Applied, 0.001)
	require.InDelta(t, 0.0, plan.Leftover, 0.001)
}

func TestAllocateReportsLeftover(t *testing.T) {
	docs := []OpenDocument{openDoc(100, 0, -30), openDoc(100, 0, -10)}

	plan, err := Allocate(250, docs)
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	require.InDelta(t, 100.0, plan.Allocations[0].Applied, 0.001)
	require.InDelta(t, 100.0, plan.Allocations[1].Applied, 0.001)
	require.InDelta(t, 50.0, plan.Leftover, 0.001)
}

func TestAllocateSkipsSettledAndStopsEarly(t *testing.T) {
	settled := openDoc(100, 100, -60)
	first := openDoc(40, 0, -30)
	second := openDoc(200, 0, -10)
	untouched := openDoc(300, 0, -5)

	plan, err := Allocate(60, []OpenDocument{settled, first, second, untouched})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	require.Equal(t, first.ID, plan.Allocations[0].DocumentID)
	require.InDelta(t, 40.0, plan.Allocations[0].Applied, 0.001)
	require.Equal(t, second.ID, plan.Allocations[1].DocumentID)
	require.InDelta(t, 20.0, plan.Allocations[1].Applied, 0.001)
	require.InDelta(t, 0.0, plan.Leftover, 0.001)
}

func TestAllocateRejectsNonPositiveAmount(t *testing.T) {
	_, err := Allocate(0, []OpenDocument{openDoc(100, 0, 0)})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Allocate(-5, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAllocateNoDocuments(t *testing.T) {
	plan, err := Allocate(75, nil)
	require.NoError(t, err)
	require.Empty(t, plan.Allocations)
	require.InDelta(t, 75.0, plan.Leftover, 0.001)
}

func TestSettlementOf(t *testing.T) {
	require.Equal(t, SettlementUnpaid, SettlementOf(0, 100))
	require.Equal(t, SettlementPartiallyPaid, SettlementOf(50, 100))
	require.Equal(t, SettlementPaid, SettlementOf(100, 100))
	require.Equal(t, SettlementPaid, SettlementOf(120, 100))
}
