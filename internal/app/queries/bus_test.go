package queries_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/queries"
)

type countQuery struct{ N int }

func (countQuery) Key() string { return "test.count" }

type missingQuery struct{}

func (missingQuery) Key() string { return "test.missing" }

func TestAskRoutesAndReportsKeys(t *testing.T) {
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler[countQuery, []int](bus, countQuery{}.Key(), queries.HandlerFunc[countQuery, []int](func(_ context.Context, q countQuery) ([]int, error) {
		out := make([]int, q.N)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}))

	got, err := queries.Ask[countQuery, []int](context.Background(), bus, countQuery{N: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, []string{"test.count"}, bus.Keys())

	_, err = queries.Ask[missingQuery, []int](context.Background(), bus, missingQuery{})
	assert.ErrorIs(t, err, queries.ErrHandlerNotFound)
	assert.Contains(t, err.Error(), "test.missing")

	_, err = queries.Ask[countQuery, string](context.Background(), bus, countQuery{N: 1})
	assert.ErrorIs(t, err, queries.ErrResultType)
	assert.Contains(t, err.Error(), "test.count returned []int, want string")
}
