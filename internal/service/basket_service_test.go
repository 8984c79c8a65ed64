package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const cart = "6f1c2a4e-8d0b-4f7e-9a51-3c2d1e0f9b8a"

func TestBasket_AddDecrementsResidue(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Apple", 4, "1.00")

	for i := 1; i <= 4; i++ {
		require.NoError(t, f.baskets.Add(ctx, cart, p.ID))
		assert.Equal(t, int64(4-i), f.residue(t, p.ID))
		assert.Equal(t, int64(i), f.quantity(t, cart, p.ID))
		assert.Equal(t, int64(4), f.residue(t, p.ID)+f.quantity(t, cart, p.ID))
	}
}

func TestBasket_AddWithoutResidueIsNoop(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Apple", 0, "1.00")

	require.NoError(t, f.baskets.Add(ctx, cart, p.ID))
	_, err := f.basket.GetLine(ctx, cart, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, int64(0), f.residue(t, p.ID))
	assert.NotEmpty(t, f.logs.AllEntries())
}

func TestBasket_AddUnknownProduct(t *testing.T) {
	f := setup(t)
	err := f.baskets.Add(context.Background(), cart, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBasket_RemoveWithoutLine(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Apple", 3, "1.00")

	assert.ErrorIs(t, f.baskets.Remove(ctx, cart, p.ID), repository.ErrNotFound)
	assert.ErrorIs(t, f.baskets.Remove(ctx, cart, 42), repository.ErrNotFound)
	assert.Equal(t, int64(3), f.residue(t, p.ID))
}

func TestBasket_AddAddRemove(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.product(t, "A", 3, "1.00")

	require.NoError(t, f.baskets.Add(ctx, cart, a.ID))
	assert.Equal(t, int64(2), f.residue(t, a.ID))
	assert.Equal(t, int64(1), f.quantity(t, cart, a.ID))

	require.NoError(t, f.baskets.Add(ctx, cart, a.ID))
	assert.Equal(t, int64(1), f.residue(t, a.ID))
	assert.Equal(t, int64(2), f.quantity(t, cart, a.ID))

	require.NoError(t, f.baskets.Remove(ctx, cart, a.ID))
	assert.Equal(t, int64(2), f.residue(t, a.ID))
	assert.Equal(t, int64(1), f.quantity(t, cart, a.ID))
}

func TestBasket_RemoveLastUnitDeletesLine(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Apple", 1, "1.00")

	require.NoError(t, f.baskets.Add(ctx, cart, p.ID))
	require.NoError(t, f.baskets.Remove(ctx, cart, p.ID))
	_, err := f.basket.GetLine(ctx, cart, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, int64(1), f.residue(t, p.ID))

	// a second remove has no line left to act on
	assert.ErrorIs(t, f.baskets.Remove(ctx, cart, p.ID), repository.ErrNotFound)
	assert.Equal(t, int64(1), f.residue(t, p.ID))
}

func TestBasket_Total(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	melon := f.product(t, "Melon", 5, "150.00")
	cake := f.product(t, "Cake", 5, "75.50")

	require.NoError(t, f.baskets.Add(ctx, cart, melon.ID))
	require.NoError(t, f.baskets.Add(ctx, cart, melon.ID))
	require.NoError(t, f.baskets.Add(ctx, cart, cake.ID))

	b, err := f.baskets.Get(ctx, cart)
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, "Cake", b.Lines[0].Product.Title)
	assert.True(t, b.Total.Equal(decimal.RequireFromString("375.50")), "total %s", b.Total)

	empty, err := f.baskets.Get(ctx, "other-cart")
	require.NoError(t, err)
	assert.Empty(t, empty.Lines)
	assert.True(t, empty.Total.IsZero())
}

func TestBasket_CartsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Apple", 5, "1.00")

	require.NoError(t, f.baskets.Add(ctx, "cart-a", p.ID))
	require.NoError(t, f.baskets.Add(ctx, "cart-b", p.ID))
	require.NoError(t, f.baskets.Add(ctx, "cart-b", p.ID))

	assert.Equal(t, int64(1), f.quantity(t, "cart-a", p.ID))
	assert.Equal(t, int64(2), f.quantity(t, "cart-b", p.ID))
	assert.Equal(t, int64(2), f.residue(t, p.ID))

	assert.ErrorIs(t, f.baskets.Add(ctx, "", p.ID), ErrInvalidInput)
}

// failingBasket breaks SaveLine after the residue was already decremented
type failingBasket struct {
	repository.BasketRepository
}

var errSave = errors.New("save failed")

func (failingBasket) SaveLine(context.Context, *domain.BasketLine) error { return errSave }

func TestBasket_AddIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Apple", 2, "1.00")

	svc := NewBasketService(f.store, failingBasket{f.basket}, f.tx, f.baskets.log)
	assert.ErrorIs(t, svc.Add(ctx, cart, p.ID), errSave)
	assert.Equal(t, int64(2), f.residue(t, p.ID))
}
