package accounting

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

// memoryRepo mimics the transactional repository with a coarse lock so
// concurrent postings exercise the same serialization the database
// row locks provide.
type memoryRepo struct {
	mu       sync.Mutex
	seq      map[string]int64
	entries  map[int64]Entry
	origins  map[string]int64
	totals   map[string][2]float64
	accounts map[string]struct{}
	nextID   int64
}

func newMemoryRepo(accountNumbers ...string) *memoryRepo {
	r := &memoryRepo{
		seq:      map[string]int64{"VEN": 1, "ACH": 1, "BNQ": 1, "OD": 1},
		entries:  map[int64]Entry{},
		origins:  map[string]int64{},
		totals:   map[string][2]float64{},
		accounts: map[string]struct{}{},
	}
	for _, n := range accountNumbers {
		r.accounts[n] = struct{}{}
	}
	return r
}

type memoryTx struct {
	repo *memoryRepo
}

func originKey(ref documents.Ref) string {
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Snapshot the shared state so a failing closure leaves no trace,
	// same as the database rollback.
	seq := maps.Clone(r.seq)
	entries := maps.Clone(r.entries)
	origins := maps.Clone(r.origins)
	totals := maps.Clone(r.totals)
	nextID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.seq, r.entries, r.origins, r.totals, r.nextID = seq, entries, origins, totals, nextID
		return err
	}
	return nil
}

func (r *memoryRepo) GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[entryID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

func (tx *memoryTx) NextSequence(ctx context.Context, journalCode string) (int64, error) {
	seq, ok := tx.repo.seq[journalCode]
	if !ok {
		return 0, fmt.Errorf("journals: journal not found")
	}
	tx.repo.seq[journalCode] = seq + 1
	return seq, nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries[entry.ID] = entry
	return entry.ID, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []Line) error {
	entry := tx.repo.entries[entryID]
	entry.Lines = lines
	tx.repo.entries[entryID] = entry
	return nil
}

func (tx *memoryTx) MarkOriginPosted(ctx context.Context, origin documents.Ref, entryID int64) error {
	key := originKey(origin)
	if _, ok := tx.repo.origins[key]; ok {
		return ErrAlreadyPosted
	}
	tx.repo.origins[key] = entryID
	return nil
}

func (tx *memoryTx) ReleaseOrigin(ctx context.Context, origin documents.Ref) error {
	delete(tx.repo.origins, originKey(origin))
	return nil
}

func (tx *memoryTx) AccumulateAccountTotals(ctx context.Context, deltas []AccountDelta) error {
	for _, d := range deltas {
		if _, ok := tx.repo.accounts[d.AccountNumber]; !ok {
			return fmt.Errorf("accounts: account not found: %s", d.AccountNumber)
		}
		t := tx.repo.totals[d.AccountNumber]
		t[0] += d.Debit
		t[1] += d.Credit
		tx.repo.totals[d.AccountNumber] = t
	}
	return nil
}

func (tx *memoryTx) GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error) {
	entry, ok := tx.repo.entries[entryID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (tx *memoryTx) UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error {
	entry, ok := tx.repo.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Status = status
	tx.repo.entries[entryID] = entry
	return nil
}

type lockedGuard struct {
	locked bool
}

func (g lockedGuard) EnsureOpen(ctx context.Context, date time.Time) error {
	if g.locked {
		return ErrPeriodLocked
	}
	return nil
}

func saleInput(origin documents.Ref) PostingInput {
	return PostingInput{
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		JournalCode: "VEN",
		Label:       "Invoice FA-0001",
		Origin:      origin,
		PostedBy:    "user:42",
		Lines: []LineInput{
			{AccountNumber: "411000", Label: "Client", Debit: 3186},
			{AccountNumber: "707000", Label: "Sales", Credit: 2700},
			{AccountNumber: "445710", Label: "VAT", Credit: 486},
		},
	}
}

func invoiceRef() documents.Ref {
	return documents.Ref{Kind: documents.RefKindInvoice, ID: uuid.New(), Number: "FA-0001"}
}

func TestPostEntryAssignsSequenceAndBalances(t *testing.T) {
	repo := newMemoryRepo("411000", "707000", "445710")
	svc := NewService(repo, nil, nil, nil)

	entry, err := svc.PostEntry(context.Background(), saleInput(invoiceRef()))
	require.NoError(t, err)
	require.EqualValues(t, 1, entry.Sequence)
	require.Equal(t, "VEN-000001", entry.PieceNumber)
	require.Equal(t, EntryStatusPosted, entry.Status)

	var debit, credit float64
	for _, line := range entry.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	require.Equal(t, debit, credit)
}

func TestPostEntryRejectsUnbalanced(t *testing.T) {
	repo := newMemoryRepo("411000", "707000")
	svc := NewService(repo, nil, nil, nil)

	input := saleInput(invoiceRef())
	input.Lines = []LineInput{
		{AccountNumber: "411000", Debit: 100},
		{AccountNumber: "707000", Credit: 99.99},
	}
	_, err := svc.PostEntry(context.Background(), input)
	require.ErrorIs(t, err, ErrUnbalanced)

	var ub *UnbalancedEntryError
	require.ErrorAs(t, err, &ub)
	require.Equal(t, 100.0, ub.TotalDebit)
	require.Equal(t, 99.99, ub.TotalCredit)
	require.Empty(t, repo.entries)
}

func TestPostEntryRoundingAbsorbsFloatDrift(t *testing.T) {
	repo := newMemoryRepo("411000", "707000")
	svc := NewService(repo, nil, nil, nil)

	input := saleInput(invoiceRef())
	// 0.1+0.2 on the debit side vs 0.3 on the credit side balances only
	// after 2-decimal rounding.
	input.Lines = []LineInput{
		{AccountNumber: "411000", Debit: 0.1},
		{AccountNumber: "411000", Debit: 0.2},
		{AccountNumber: "707000", Credit: 0.3},
	}
	_, err := svc.PostEntry(context.Background(), input)
	require.NoError(t, err)
}

func TestPostEntryRejectsDegenerateLines(t *testing.T) {
	repo := newMemoryRepo("411000", "707000")
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	input := saleInput(invoiceRef())
	input.Lines = input.Lines[:1]
	_, err := svc.PostEntry(ctx, input)
	require.ErrorIs(t, err, ErrTooFewLines)

	input = saleInput(invoiceRef())
	input.Lines = []LineInput{
		{AccountNumber: "411000", Debit: 0},
		{AccountNumber: "707000", Credit: 0},
	}
	_, err = svc.PostEntry(ctx, input)
	require.Error(t, err)

	input = saleInput(invoiceRef())
	input.Lines = []LineInput{
		{AccountNumber: "411000", Debit: 50, Credit: 50},
		{AccountNumber: "707000", Credit: 0},
	}
	_, err = svc.PostEntry(ctx, input)
	require.Error(t, err)

	// A sub-cent amount rounds to 0.00 and must be rejected, not
	// persisted as an empty line.
	input = saleInput(invoiceRef())
	input.Lines = []LineInput{
		{AccountNumber: "411000", Debit: 0.004},
		{AccountNumber: "707000", Credit: 0.004},
	}
	_, err = svc.PostEntry(ctx, input)
	require.Error(t, err)
	require.Empty(t, repo.entries)
}

func TestPostEntryIdempotentGuard(t *testing.T) {
	repo := newMemoryRepo("411000", "707000", "445710")
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	origin := invoiceRef()
	_, err := svc.PostEntry(ctx, saleInput(origin))
	require.NoError(t, err)

	_, err = svc.PostEntry(ctx, saleInput(origin))
	require.ErrorIs(t, err, ErrAlreadyPosted)

	// The rejected duplicate must leave no trace: no extra entry, no
	// consumed sequence number, no doubled account totals.
	require.Len(t, repo.entries, 1)
	require.EqualValues(t, 2, repo.seq["VEN"])
	require.InDelta(t, 3186.0, repo.totals["411000"][0], 0.001)
}

func TestPostEntryRespectsFiscalGuard(t *testing.T) {
	repo := newMemoryRepo("411000", "707000", "445710")
	svc := NewService(repo, nil, lockedGuard{locked: true}, nil)

	_, err := svc.PostEntry(context.Background(), saleInput(invoiceRef()))
	require.ErrorIs(t, err, ErrPeriodLocked)
	require.Empty(t, repo.entries)
}

func TestVoidEntryPostsReversal(t *testing.T) {
	repo := newMemoryRepo("411000", "707000", "445710")
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	origin := invoiceRef()
	entry, err := svc.PostEntry(ctx, saleInput(origin))
	require.NoError(t, err)

	reversal, err := svc.VoidEntry(ctx, VoidInput{EntryID: entry.ID, Actor: "user:42", Reason: "wrong customer"})
	require.NoError(t, err)
	require.EqualValues(t, 2, reversal.Sequence)

	for i, line := range reversal.Lines {
		require.Equal(t, entry.Lines[i].Debit, line.Credit)
		require.Equal(t, entry.Lines[i].Credit, line.Debit)
	}

	original, err := svc.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, EntryStatusVoid, original.Status)

	// Voiding released the origin guard: the document can be re-posted.
	_, err = svc.PostEntry(ctx, saleInput(origin))
	require.NoError(t, err)

	// A voided entry cannot be voided twice.
	_, err = svc.VoidEntry(ctx, VoidInput{EntryID: entry.ID, Actor: "user:42"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestConcurrentPostingsNeverShareSequence(t *testing.T) {
	repo := newMemoryRepo("411000", "707000", "445710")
	svc := NewService(repo, nil, nil, nil)

	const workers = 16
	results := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := svc.PostEntry(context.Background(), saleInput(invoiceRef()))
			require.NoError(t, err)
			results <- entry.Sequence
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]struct{}{}
	for seq := range results {
		_, dup := seen[seq]
		require.False(t, dup, "duplicate piece sequence %d", seq)
		seen[seq] = struct{}{}
	}
	require.Len(t, seen, workers)
}
