package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/repository/gormstore"
)

type gormFixture struct {
	store    *gormstore.Store
	basket   *gormstore.Basket
	orders   *gormstore.Orders
	tx       *gormstore.Tx
	baskets  *BasketService
	checkout *CheckoutService
}

func setupGorm(t *testing.T) *gormFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gormstore.Open("sqlite", dsn, nil)
	require.NoError(t, err)
	require.NoError(t, gormstore.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log, _ := test.NewNullLogger()
	f := &gormFixture{
		store:  gormstore.NewStore(db),
		basket: gormstore.NewBasket(db),
		orders: gormstore.NewOrders(db),
		tx:     gormstore.NewTx(db),
	}
	f.baskets = NewBasketService(f.store, f.basket, f.tx, log)
	f.checkout = NewCheckoutService(f.basket, f.orders, f.tx, &recordingNotifier{}, log)
	return f
}

func (f *gormFixture) product(t *testing.T, title string, residue int64, price string) domain.Product {
	t.Helper()
	p := domain.Product{Title: title, Category: domain.CategoryFruits, Residue: residue, Price: decimal.RequireFromString(price)}
	require.NoError(t, f.store.Create(context.Background(), &p))
	return p
}

func (f *gormFixture) residue(t *testing.T, id int64) int64 {
	t.Helper()
	p, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Residue
}

func TestGorm_BasketAndCheckout(t *testing.T) {
	ctx := context.Background()
	f := setupGorm(t)
	melon := f.product(t, "Melon", 2, "150.00")
	cake := f.product(t, "Cake", 1, "75.50")

	require.NoError(t, f.baskets.Add(ctx, cart, melon.ID))
	require.NoError(t, f.baskets.Add(ctx, cart, melon.ID))
	require.NoError(t, f.baskets.Add(ctx, cart, melon.ID)) // no residue left: no-op
	require.NoError(t, f.baskets.Add(ctx, cart, cake.ID))
	require.NoError(t, f.baskets.Remove(ctx, cart, melon.ID))
	assert.Equal(t, int64(1), f.residue(t, melon.ID))
	assert.Equal(t, int64(0), f.residue(t, cake.ID))

	b, err := f.baskets.Get(ctx, cart)
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, "225.5", b.Total.String())

	o, err := f.checkout.PlaceOrder(ctx, cart, customer)
	require.NoError(t, err)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "225.5", o.Total().String())

	stored, err := f.checkout.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)

	b, err = f.baskets.Get(ctx, cart)
	require.NoError(t, err)
	assert.Empty(t, b.Lines)
	assert.Equal(t, int64(1), f.residue(t, melon.ID))
}

func TestGorm_AddIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := setupGorm(t)
	p := f.product(t, "Apple", 2, "1.00")

	svc := NewBasketService(f.store, failingBasket{f.basket}, f.tx, f.baskets.log)
	assert.ErrorIs(t, svc.Add(ctx, cart, p.ID), errSave)
	assert.Equal(t, int64(2), f.residue(t, p.ID))
}

func TestGorm_PlaceOrderIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := setupGorm(t)
	p := f.product(t, "Apple", 2, "1.00")
	require.NoError(t, f.baskets.Add(ctx, cart, p.ID))

	svc := NewCheckoutService(failingClear{f.basket}, f.orders, f.tx, &recordingNotifier{}, f.baskets.log)
	_, err := svc.PlaceOrder(ctx, cart, customer)
	require.ErrorIs(t, err, errClear)

	orders, err := f.checkout.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	l, err := f.basket.GetLine(ctx, cart, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.Quantity)
}

// staleProducts reports the residue read before a concurrent add took the last unit
type staleProducts struct {
	*gormstore.Store
	residue int64
}

func (s staleProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Residue = s.residue
	return p, nil
}

func TestGorm_AddLosesRaceForLastUnit(t *testing.T) {
	ctx := context.Background()
	f := setupGorm(t)
	p := f.product(t, "Apple", 0, "1.00")

	svc := NewBasketService(staleProducts{Store: f.store, residue: 1}, f.basket, f.tx, f.baskets.log)
	require.NoError(t, svc.Add(ctx, cart, p.ID))

	assert.Equal(t, int64(0), f.residue(t, p.ID))
	_, err := f.basket.GetLine(ctx, cart, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
