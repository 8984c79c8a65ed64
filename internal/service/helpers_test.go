package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type fixture struct {
	store    *repository.MemoryStore
	basket   *repository.MemoryBasket
	orders   *repository.MemoryOrders
	tx       *repository.MemoryTx
	catalog  *CatalogService
	baskets  *BasketService
	checkout *CheckoutService
	notifier *recordingNotifier
	logs     *test.Hook
}

type recordingNotifier struct {
	placed []domain.Order
	err    error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, o domain.Order) error {
	n.placed = append(n.placed, o)
	return n.err
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f := &fixture{
		store:    repository.NewMemoryStore(),
		notifier: &recordingNotifier{},
		logs:     hook,
	}
	f.basket = repository.NewMemoryBasket(f.store)
	f.orders = repository.NewMemoryOrders(f.store)
	f.tx = repository.NewMemoryTx(f.store)
	f.catalog = NewCatalogService(f.store, DefaultPageSize)
	f.baskets = NewBasketService(f.store, f.basket, f.tx, log)
	f.checkout = NewCheckoutService(f.basket, f.orders, f.tx, f.notifier, log)
	return f
}

func (f *fixture) product(t *testing.T, title string, residue int64, price string) *domain.Product {
	t.Helper()
	p, err := f.catalog.Create(context.Background(), domain.Product{
		Title:    title,
		Category: domain.CategoryFruits,
		Residue:  residue,
		Price:    decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) residue(t *testing.T, id int64) int64 {
	t.Helper()
	p, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Residue
}

func (f *fixture) quantity(t *testing.T, cartID string, productID int64) int64 {
	t.Helper()
	l, err := f.basket.GetLine(context.Background(), cartID, productID)
	if err != nil {
		return 0
	}
	return l.Quantity
}
