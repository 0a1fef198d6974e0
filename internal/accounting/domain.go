// Package accounting implements the ledger engine: validated,
// atomically numbered double-entry postings and their void reversals.
package accounting

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// EntryStatus enumerates ledger entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "DRAFT"
	EntryStatusPosted EntryStatus = "POSTED"
	EntryStatusVoid   EntryStatus = "VOID"
)

// Entry is a posted ledger entry. Once posted it is an append-only
// audit fact; corrections go through VoidEntry, never edits.
type Entry struct {
	ID          int64
	PieceNumber string
	Sequence    int64
	JournalCode string
	Date        time.Time
	Label       string
	Origin      documents.Ref
	Status      EntryStatus
	PostedBy    string
	CreatedAt   time.Time
	Lines       []Line
}

// Line stores the debit or credit amount for one account.
type Line struct {
	ID            int64
	EntryID       int64
	AccountNumber string
	Label         string
	Debit         float64
	Credit        float64
}

// LineInput describes a requested entry line.
type LineInput struct {
	AccountNumber string
	Label         string
	Debit         float64
	Credit        float64
}

// PostingInput groups the fields required to post an entry.
type PostingInput struct {
	PieceNumber string // optional; derived from the journal sequence when empty
	Date        time.Time
	JournalCode string
	Label       string
	Lines       []LineInput
	Origin      documents.Ref
	PostedBy    string
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	EntryID int64
	Actor   string
	Reason  string
}

var (
	// ErrUnbalanced indicates sum(debit) != sum(credit) after rounding.
	ErrUnbalanced = errors.New("accounting: entry lines must balance")
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = errors.New("accounting: entry requires at least two lines")
	// ErrEmptyEntry indicates a balanced but zero-total entry.
	ErrEmptyEntry = errors.New("accounting: entry total must be non-zero")
	// ErrAlreadyPosted indicates the origin document already has an entry.
	ErrAlreadyPosted = errors.New("accounting: origin document already posted")
	// ErrPeriodLocked indicates the fiscal-year gate rejected the date.
	ErrPeriodLocked = errors.New("accounting: fiscal period locked")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("accounting: entry not found")
	// ErrInvalidStatus indicates the entry cannot be voided in its state.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
)

// UnbalancedEntryError carries both totals so the caller sees the
// offending values, not just that they differ.
type UnbalancedEntryError struct {
	TotalDebit  float64
	TotalCredit float64
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("accounting: entry unbalanced: debit %.2f != credit %.2f", e.TotalDebit, e.TotalCredit)
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalanced }

// Validate enforces the posting constraints before any write: at least
// two lines, exactly one positive side per line, balanced totals at
// 2-decimal precision, non-zero total, well-formed origin.
func (in PostingInput) Validate() error {
	if in.JournalCode == "" {
		return errors.New("accounting: journal code required")
	}
	if in.Date.IsZero() {
		return errors.New("accounting: date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	if err := in.Origin.Validate(); err != nil {
		return err
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if !accounts.ValidNumber(line.AccountNumber) {
			return fmt.Errorf("%w: line %d account %q", accounts.ErrInvalidNumber, idx, line.AccountNumber)
		}
		// Side checks run on the rounded amounts, the values that get
		// persisted; a sub-cent line must not slip through as 0.00/0.00.
		d := money.Round2(line.Debit)
		c := money.Round2(line.Credit)
		if d < 0 || c < 0 {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if d > 0 && c > 0 {
			return fmt.Errorf("accounting: line %d cannot be both debit and credit", idx)
		}
		if d == 0 && c == 0 {
			return fmt.Errorf("accounting: line %d has no amount", idx)
		}
		debit += d
		credit += c
	}
	debit = money.Round2(debit)
	credit = money.Round2(credit)
	if debit != credit {
		return &UnbalancedEntryError{TotalDebit: debit, TotalCredit: credit}
	}
	if debit == 0 {
		return ErrEmptyEntry
	}
	return nil
}
