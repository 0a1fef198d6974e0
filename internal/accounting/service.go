package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error)
	ListEntries(ctx context.Context, limit int) ([]Entry, error)
}

// TxRepository exposes the operations available inside one posting
// transaction. Everything in here commits or rolls back together.
type TxRepository interface {
	NextSequence(ctx context.Context, journalCode string) (int64, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	InsertLines(ctx context.Context, entryID int64, lines []Line) error
	MarkOriginPosted(ctx context.Context, origin documents.Ref, entryID int64) error
	ReleaseOrigin(ctx context.Context, origin documents.Ref) error
	AccumulateAccountTotals(ctx context.Context, deltas []AccountDelta) error
	GetEntryWithLines(ctx context.Context, entryID int64) (Entry, error)
	UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error
}

// AccountDelta aggregates the per-account movement of one entry.
type AccountDelta struct {
	AccountNumber string
	Debit         float64
	Credit        float64
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// FiscalGuard is the external fiscal-year gate. The engine respects it
// inside the posting transaction; it does not own period close.
type FiscalGuard interface {
	EnsureOpen(ctx context.Context, date time.Time) error
}

// CacheInvalidator drops cached account projections touched by a posting.
type CacheInvalidator interface {
	InvalidateCached(ctx context.Context, numbers ...string)
}

// Service coordinates posting and voiding ledger entries.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	guard   FiscalGuard
	invalid CacheInvalidator
	now     func() time.Time
}

// NewService constructs the ledger engine.
func NewService(repo RepositoryPort, audit AuditPort, guard FiscalGuard, invalid CacheInvalidator) *Service {
	return &Service{repo: repo, audit: audit, guard: guard, invalid: invalid, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry validates and persists a new ledger entry. The sequence
// claim, the origin guard, the entry rows and the account totals all
// share one transaction; nothing partial ever survives.
func (s *Service) PostEntry(ctx context.Context, input PostingInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if s.guard != nil {
			if err := s.guard.EnsureOpen(ctx, input.Date); err != nil {
				return err
			}
		}
		seq, err := tx.NextSequence(ctx, input.JournalCode)
		if err != nil {
			return err
		}
		piece := input.PieceNumber
		if piece == "" {
			piece = fmt.Sprintf("%s-%06d", input.JournalCode, seq)
		}
		entry = Entry{
			PieceNumber: piece,
			Sequence:    seq,
			JournalCode: input.JournalCode,
			Date:        input.Date,
			Label:       input.Label,
			Origin:      input.Origin,
			Status:      EntryStatusPosted,
			PostedBy:    input.PostedBy,
			Lines:       roundedLines(input.Lines),
		}
		entryID, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = entryID
		if err := tx.InsertLines(ctx, entryID, entry.Lines); err != nil {
			return err
		}
		if err := tx.MarkOriginPosted(ctx, input.Origin, entryID); err != nil {
			return err
		}
		return tx.AccumulateAccountTotals(ctx, deltasOf(entry.Lines, 1))
	})
	if err != nil {
		return Entry{}, err
	}
	s.invalidateAccounts(ctx, entry.Lines)
	s.recordAudit(ctx, input.PostedBy, "ledger.post", entry, map[string]any{
		"journal": entry.JournalCode,
		"origin":  entry.Origin.String(),
	})
	return entry, nil
}

// VoidEntry posts a full reversing entry and flips the original to
// VOID. The origin guard is released in the same transaction so the
// document can be re-posted without racing the void.
func (s *Service) VoidEntry(ctx context.Context, input VoidInput) (Entry, error) {
	if input.EntryID == 0 {
		return Entry{}, ErrEntryNotFound
	}
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return ErrInvalidStatus
		}
		if s.guard != nil {
			if err := s.guard.EnsureOpen(ctx, original.Date); err != nil {
				return err
			}
		}
		seq, err := tx.NextSequence(ctx, original.JournalCode)
		if err != nil {
			return err
		}
		reversal = Entry{
			PieceNumber: fmt.Sprintf("%s-%06d", original.JournalCode, seq),
			Sequence:    seq,
			JournalCode: original.JournalCode,
			Date:        original.Date,
			Label:       voidLabel(input.Reason, original.PieceNumber),
			Origin: documents.Ref{
				Kind:   documents.RefKindManual,
				ID:     uuid.New(),
				Number: "VOID-" + original.PieceNumber,
			},
			Status:   EntryStatusPosted,
			PostedBy: input.Actor,
			Lines:    reverseLines(original.Lines),
		}
		reversalID, err := tx.InsertEntry(ctx, reversal)
		if err != nil {
			return err
		}
		reversal.ID = reversalID
		if err := tx.InsertLines(ctx, reversalID, reversal.Lines); err != nil {
			return err
		}
		if err := tx.MarkOriginPosted(ctx, reversal.Origin, reversalID); err != nil {
			return err
		}
		if err := tx.UpdateEntryStatus(ctx, original.ID, EntryStatusVoid); err != nil {
			return err
		}
		if err := tx.ReleaseOrigin(ctx, original.Origin); err != nil {
			return err
		}
		return tx.AccumulateAccountTotals(ctx, deltasOf(reversal.Lines, 1))
	})
	if err != nil {
		return Entry{}, err
	}
	s.invalidateAccounts(ctx, reversal.Lines)
	s.recordAudit(ctx, input.Actor, "ledger.void", reversal, map[string]any{
		"original_entry_id": input.EntryID,
		"reason":            input.Reason,
	})
	return reversal, nil
}

// GetEntry loads a single entry with its lines.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	return s.repo.GetEntryWithLines(ctx, entryID)
}

// ListEntries returns recent entries, newest first.
func (s *Service) ListEntries(ctx context.Context, limit int) ([]Entry, error) {
	return s.repo.ListEntries(ctx, limit)
}

func (s *Service) invalidateAccounts(ctx context.Context, lines []Line) {
	if s.invalid == nil {
		return
	}
	numbers := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountNumber]; ok {
			continue
		}
		seen[line.AccountNumber] = struct{}{}
		numbers = append(numbers, line.AccountNumber)
	}
	s.invalid.InvalidateCached(ctx, numbers...)
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entry Entry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "ledger_entry",
		EntityID: entry.PieceNumber,
		Meta:     meta,
		At:       s.now(),
	})
}

func roundedLines(inputs []LineInput) []Line {
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, Line{
			AccountNumber: in.AccountNumber,
			Label:         in.Label,
			Debit:         money.Round2(in.Debit),
			Credit:        money.Round2(in.Credit),
		})
	}
	return lines
}

func reverseLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, Line{
			AccountNumber: line.AccountNumber,
			Label:         line.Label,
			Debit:         line.Credit,
			Credit:        line.Debit,
		})
	}
	return out
}

func deltasOf(lines []Line, sign float64) []AccountDelta {
	byAccount := make(map[string]*AccountDelta)
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		delta, ok := byAccount[line.AccountNumber]
		if !ok {
			delta = &AccountDelta{AccountNumber: line.AccountNumber}
			byAccount[line.AccountNumber] = delta
			order = append(order, line.AccountNumber)
		}
		delta.Debit = money.Round2(delta.Debit + sign*line.Debit)
		delta.Credit = money.Round2(delta.Credit + sign*line.Credit)
	}
	out := make([]AccountDelta, 0, len(order))
	for _, number := range order {
		out = append(out, *byAccount[number])
	}
	return out
}

func voidLabel(reason, piece string) string {
	if reason != "" {
		return fmt.Sprintf("Void %s: %s", piece, reason)
	}
	return fmt.Sprintf("Void %s", piece)
}
