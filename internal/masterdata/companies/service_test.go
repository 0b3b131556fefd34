package companies

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garuda-dms/garuda-dms/internal/shared"
)

type fakeRepo struct {
	companies map[int64]Company
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{companies: map[int64]Company{}}
}

func (r *fakeRepo) List(_ context.Context, _, _ int) ([]Company, int, error) {
	var out []Company
	for _, c := range r.companies {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (Company, error) {
	c, ok := r.companies[id]
	if !ok {
		return Company{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *fakeRepo) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := r.companies[id]
	return ok, nil
}

func (r *fakeRepo) Create(_ context.Context, in CreateInput) (Company, error) {
	r.nextID++
	c := Company{
		ID:        r.nextID,
		Code:      in.Code,
		Name:      in.Name,
		Division:  in.Division,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.companies[c.ID] = c
	return c, nil
}

func TestCreateCompany(t *testing.T) {
	service := NewService(newFakeRepo())
	created, err := service.Create(context.Background(), CreateInput{
		Code:           " GRD-SPT-01 ",
		Name:           "Garuda Sport Utama",
		Division:       "sport",
		OpeningCapital: decimal.NewFromInt(250000000),
	})
	require.NoError(t, err)
	require.Equal(t, "GRD-SPT-01", created.Code)
	require.Equal(t, "sport", created.Division)

	exists, err := service.Exists(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCreateCompanyValidation(t *testing.T) {
	service := NewService(newFakeRepo())
	cases := []CreateInput{
		{Code: "", Name: "x", Division: "sport"},
		{Code: "x", Name: "", Division: "sport"},
		{Code: "x", Name: "y", Division: ""},
		{Code: "x", Name: "y", Division: "sport", OpeningCapital: decimal.NewFromInt(-1)},
	}
	for _, in := range cases {
		_, err := service.Create(context.Background(), in)
		require.Error(t, err)
	}
}

func TestExistsUnknownCompany(t *testing.T) {
	service := NewService(newFakeRepo())
	exists, err := service.Exists(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = service.Exists(context.Background(), 0)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGetUnknownCompany(t *testing.T) {
	service := NewService(newFakeRepo())
	_, err := service.Get(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
