package journals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	byCode map[string]Journal
}

func (r *fakeRepo) Insert(ctx context.Context, journal Journal) (Journal, error) {
	if r.byCode == nil {
		r.byCode = map[string]Journal{}
	}
	if _, ok := r.byCode[journal.Code]; ok {
		return Journal{}, ErrDuplicateCode
	}
	journal.ID = int64(len(r.byCode) + 1)
	journal.NextSeq = 1
	r.byCode[journal.Code] = journal
	return journal, nil
}

func (r *fakeRepo) GetByCode(ctx context.Context, code string) (Journal, error) {
	if j, ok := r.byCode[code]; ok {
		return j, nil
	}
	return Journal{}, ErrJournalNotFound
}

func (r *fakeRepo) List(ctx context.Context) ([]Journal, error) {
	out := make([]Journal, 0, len(r.byCode))
	for _, j := range r.byCode {
		out = append(out, j)
	}
	return out, nil
}

func TestCreateNormalisesCode(t *testing.T) {
	svc := NewService(&fakeRepo{})
	j, err := svc.Create(context.Background(), CreateInput{Code: " ven ", Label: "Ventes", Type: TypeSales})
	require.NoError(t, err)
	require.Equal(t, "VEN", j.Code)
	require.EqualValues(t, 1, j.NextSeq)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := NewService(&fakeRepo{})

	_, err := svc.Create(context.Background(), CreateInput{Code: "VEN", Label: "Ventes", Type: "LEDGER"})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Create(context.Background(), CreateInput{Code: "", Label: "Ventes", Type: TypeSales})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Code: "TOOLONGCODE", Label: "Ventes", Type: TypeSales})
	require.Error(t, err)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := NewService(&fakeRepo{})
	_, err := svc.Create(context.Background(), CreateInput{Code: "ACH", Label: "Achats", Type: TypePurchases})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{Code: "ach", Label: "Achats bis", Type: TypePurchases})
	require.ErrorIs(t, err, ErrDuplicateCode)
}
