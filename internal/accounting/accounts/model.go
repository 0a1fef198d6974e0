// Package accounts implements the chart-of-accounts registry: account
// classification, default-account resolution and running totals.
package accounts

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Nature tells which side of an account normally grows.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// Account models a chart of accounts node. Nature is derived from the
// leading digit of Number; it is never accepted as input.
type Account struct {
	ID          int64
	Number      string
	Label       string
	Class       int
	Nature      Nature
	TotalDebit  float64
	TotalCredit float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultRole names the posting roles that must map to a configured account.
type DefaultRole string

const (
	RoleReceivables   DefaultRole = "receivables"
	RolePayables      DefaultRole = "payables"
	RoleSales         DefaultRole = "sales"
	RolePurchases     DefaultRole = "purchases"
	RoleVATCollected  DefaultRole = "vat-collected"
	RoleVATDeductible DefaultRole = "vat-deductible"
	RoleTreasury      DefaultRole = "treasury"
)

// Defaults is the injected configuration mapping posting roles to
// account numbers. It is validated once at startup; a blank field there
// beats a nil lookup in the middle of a posting.
type Defaults struct {
	Receivables   string `envconfig:"ACCT_RECEIVABLES" default:"411000"`
	Payables      string `envconfig:"ACCT_PAYABLES" default:"401000"`
	Sales         string `envconfig:"ACCT_SALES" default:"707000"`
	Purchases     string `envconfig:"ACCT_PURCHASES" default:"607000"`
	VATCollected  string `envconfig:"ACCT_VAT_COLLECTED" default:"445710"`
	VATDeductible string `envconfig:"ACCT_VAT_DEDUCTIBLE" default:"445660"`
	Treasury      string `envconfig:"ACCT_TREASURY" default:"512000"`
}

var (
	// ErrInvalidNumber indicates a number outside the chart pattern.
	ErrInvalidNumber = errors.New("accounts: invalid account number")
	// ErrAccountNotFound indicates an unknown account number.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrMissingConfiguration indicates a default role without a usable
	// account. Postings depending on the role must fail, not skip.
	ErrMissingConfiguration = errors.New("accounts: default account not configured")
	// ErrDuplicateNumber indicates the number is already registered.
	ErrDuplicateNumber = errors.New("accounts: account number already exists")
)

var numberPattern = regexp.MustCompile(`^[1-9][0-9]{2,7}$`)

// ValidNumber reports whether a number matches the chart pattern.
func ValidNumber(number string) bool {
	return numberPattern.MatchString(number)
}

// ClassOf returns the chart class (leading digit) of a number.
func ClassOf(number string) (int, error) {
	if !ValidNumber(number) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	return int(number[0] - '0'), nil
}

// NatureOf derives the normal balance side from the chart class.
// Capital (1), third parties (4) and revenue (7) grow on the credit
// side; everything else is debit-normal.
func NatureOf(class int) Nature {
	switch class {
	case 1, 4, 7:
		return NatureCredit
	default:
		return NatureDebit
	}
}

// Validate checks every role is populated with a structurally valid number.
func (d Defaults) Validate() error {
	for role, number := range d.byRole() {
		if number == "" {
			return fmt.Errorf("%w: role %s", ErrMissingConfiguration, role)
		}
		if !ValidNumber(number) {
			return fmt.Errorf("%w: role %s -> %q", ErrInvalidNumber, role, number)
		}
	}
	return nil
}

func (d Defaults) byRole() map[DefaultRole]string {
	return map[DefaultRole]string{
		RoleReceivables:   d.Receivables,
		RolePayables:      d.Payables,
		RoleSales:         d.Sales,
		RolePurchases:     d.Purchases,
		RoleVATCollected:  d.VATCollected,
		RoleVATDeductible: d.VATDeductible,
		RoleTreasury:      d.Treasury,
	}
}

// NumberForRole returns the configured number for a role.
func (d Defaults) NumberForRole(role DefaultRole) (string, error) {
	number, ok := d.byRole()[role]
	if !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrMissingConfiguration, role)
	}
	if number == "" {
		return "", fmt.Errorf("%w: role %s", ErrMissingConfiguration, role)
	}
	return number, nil
}
