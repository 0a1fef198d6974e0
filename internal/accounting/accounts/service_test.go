package accounts

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	byNumber map[string]Account
	gets     int
}

func newFakeRepo(accounts ...Account) *fakeRepo {
	r := &fakeRepo{byNumber: make(map[string]Account)}
	for i, a := range accounts {
		a.ID = int64(i + 1)
		r.byNumber[a.Number] = a
	}
	return r
}

func (r *fakeRepo) Insert(ctx context.Context, account Account) (Account, error) {
	if _, ok := r.byNumber[account.Number]; ok {
		return Account{}, ErrDuplicateNumber
	}
	account.ID = int64(len(r.byNumber) + 1)
	r.byNumber[account.Number] = account
	return account, nil
}

func (r *fakeRepo) GetByNumber(ctx context.Context, number string) (Account, error) {
	r.gets++
	if a, ok := r.byNumber[number]; ok {
		return a, nil
	}
	return Account{}, ErrAccountNotFound
}

func (r *fakeRepo) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(r.byNumber))
	for _, a := range r.byNumber {
		out = append(out, a)
	}
	return out, nil
}

func TestNatureDerivation(t *testing.T) {
	cases := []struct {
		number string
		class  int
		nature Nature
	}{
		{"101000", 1, NatureCredit},
		{"213000", 2, NatureDebit},
		{"370000", 3, NatureDebit},
		{"401000", 4, NatureCredit},
		{"512000", 5, NatureDebit},
		{"607000", 6, NatureDebit},
		{"707000", 7, NatureCredit},
	}
	for _, tc := range cases {
		class, err := ClassOf(tc.number)
		require.NoError(t, err, tc.number)
		require.Equal(t, tc.class, class, tc.number)
		require.Equal(t, tc.nature, NatureOf(class), tc.number)
	}
}

func TestClassOfRejectsBadNumbers(t *testing.T) {
	for _, number := range []string{"", "01", "4A1000", "4", "123456789"} {
		_, err := ClassOf(number)
		require.ErrorIs(t, err, ErrInvalidNumber, number)
	}
}

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Defaults{
		Receivables: "411000", Payables: "401000", Sales: "707000",
		Purchases: "607000", VATCollected: "445710", VATDeductible: "445660", Treasury: "512000",
	}.Validate())

	err := Defaults{
		Receivables: "411000", Payables: "401000", Sales: "707000",
		Purchases: "607000", VATCollected: "445710", VATDeductible: "445660",
	}.Validate()
	require.ErrorIs(t, err, ErrMissingConfiguration)
}

func fullDefaults() Defaults {
	return Defaults{
		Receivables: "411000", Payables: "401000", Sales: "707000",
		Purchases: "607000", VATCollected: "445710", VATDeductible: "445660", Treasury: "512000",
	}
}

func TestNewRegistryRejectsIncompleteDefaults(t *testing.T) {
	_, err := NewRegistry(newFakeRepo(), nil, Defaults{Receivables: "411000"})
	require.ErrorIs(t, err, ErrMissingConfiguration)
}

func TestResolveDefault(t *testing.T) {
	repo := newFakeRepo(Account{Number: "411000", Label: "Clients", Class: 4, Nature: NatureCredit})
	reg, err := NewRegistry(repo, nil, fullDefaults())
	require.NoError(t, err)

	account, err := reg.ResolveDefault(context.Background(), RoleReceivables)
	require.NoError(t, err)
	require.Equal(t, "411000", account.Number)

	// Configured number whose account row is missing is a configuration
	// failure, distinct from not-found.
	_, err = reg.ResolveDefault(context.Background(), RoleTreasury)
	require.ErrorIs(t, err, ErrMissingConfiguration)
}

func TestGetByNumberReadThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newFakeRepo(Account{Number: "512000", Label: "Bank", Class: 5, Nature: NatureDebit})
	reg, err := NewRegistry(repo, NewCache(client), fullDefaults())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		account, err := reg.GetByNumber(ctx, "512000")
		require.NoError(t, err)
		require.Equal(t, "Bank", account.Label)
	}
	require.Equal(t, 1, repo.gets)

	reg.InvalidateCached(ctx, "512000")
	_, err = reg.GetByNumber(ctx, "512000")
	require.NoError(t, err)
	require.Equal(t, 2, repo.gets)
}

func TestCreateDerivesClassAndNature(t *testing.T) {
	reg, err := NewRegistry(newFakeRepo(), nil, fullDefaults())
	require.NoError(t, err)

	account, err := reg.Create(context.Background(), CreateInput{Number: "607100", Label: "Achats marchandises"})
	require.NoError(t, err)
	require.Equal(t, 6, account.Class)
	require.Equal(t, NatureDebit, account.Nature)

	_, err = reg.Create(context.Background(), CreateInput{Number: "607100", Label: "dup"})
	require.ErrorIs(t, err, ErrDuplicateNumber)

	_, err = reg.Create(context.Background(), CreateInput{Number: "0123", Label: "bad"})
	require.ErrorIs(t, err, ErrInvalidNumber)
}
