// Package journals manages the named ledgers and their piece-number
// sequences.
package journals

import (
	"errors"
	"time"
)

// Type enumerates the supported journal categories.
type Type string

const (
	TypeSales     Type = "SALES"
	TypePurchases Type = "PURCHASES"
	TypeTreasury  Type = "TREASURY"
	TypeMisc      Type = "MISC"
)

// Journal is a named ledger bucket owning its own entry numbering.
type Journal struct {
	ID        int64
	Code      string
	Label     string
	Type      Type
	NextSeq   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrJournalNotFound indicates an unknown journal code.
	ErrJournalNotFound = errors.New("journals: journal not found")
	// ErrDuplicateCode indicates the code is already registered.
	ErrDuplicateCode = errors.New("journals: journal code already exists")
	// ErrInvalidType indicates a type outside the closed set.
	ErrInvalidType = errors.New("journals: invalid journal type")
)

// ValidType reports membership in the closed type set.
func ValidType(t Type) bool {
	switch t {
	case TypeSales, TypePurchases, TypeTreasury, TypeMisc:
		return true
	}
	return false
}
