package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

var customer = domain.CustomerInfo{ClientName: "Anna", Phone: "+7 701 000 00 00", Address: "Abay ave 10"}

func TestPlaceOrder_SnapshotsAndClearsBasket(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	melon := f.product(t, "Melon", 5, "150.00")
	cake := f.product(t, "Cake", 5, "75.50")
	require.NoError(t, f.baskets.Add(ctx, cart, melon.ID))
	require.NoError(t, f.baskets.Add(ctx, cart, melon.ID))
	require.NoError(t, f.baskets.Add(ctx, cart, cake.ID))
	require.NoError(t, f.baskets.Add(ctx, "someone-else", cake.ID))

	before := time.Now().UTC()
	o, err := f.checkout.PlaceOrder(ctx, cart, customer)
	require.NoError(t, err)
	assert.Equal(t, "Anna", o.ClientName)
	assert.Equal(t, customer.Phone, o.Phone)
	assert.Equal(t, customer.Address, o.Address)
	assert.False(t, o.CreatedAt.Before(before))
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "375.5", o.Total().String())

	stored, err := f.checkout.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, o.CreatedAt, stored.CreatedAt)

	b, err := f.baskets.Get(ctx, cart)
	require.NoError(t, err)
	assert.Empty(t, b.Lines)
	other, _ := f.baskets.Get(ctx, "someone-else")
	assert.Len(t, other.Lines, 1)

	// residue was taken at add time, checkout leaves it alone
	assert.Equal(t, int64(3), f.residue(t, melon.ID))
	assert.Equal(t, int64(3), f.residue(t, cake.ID))

	orders, err := f.checkout.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	require.Len(t, f.notifier.placed, 1)
	assert.Equal(t, o.ID, f.notifier.placed[0].ID)
}

func TestPlaceOrder_EmptyBasket(t *testing.T) {
	f := setup(t)
	o, err := f.checkout.PlaceOrder(context.Background(), cart, customer)
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.Empty(t, o.Lines)
}

func TestPlaceOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Apple", 2, "1.00")
	require.NoError(t, f.baskets.Add(ctx, cart, p.ID))

	for _, info := range []domain.CustomerInfo{
		{ClientName: "", Phone: "1", Address: "x"},
		{ClientName: "   ", Phone: "1", Address: "x"},
		{ClientName: "Anna", Phone: "", Address: "x"},
		{ClientName: "Anna", Phone: "1", Address: ""},
	} {
		_, err := f.checkout.PlaceOrder(ctx, cart, info)
		require.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := f.checkout.PlaceOrder(ctx, cart, domain.CustomerInfo{Phone: "1", Address: "x"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"client_name": "this field is required"}, verr.Fields)

	orders, _ := f.checkout.ListOrders(ctx)
	assert.Empty(t, orders)
	assert.Equal(t, int64(1), f.quantity(t, cart, p.ID))
}

func TestPlaceOrder_NotifierFailureIsLogged(t *testing.T) {
	f := setup(t)
	f.notifier.err = errors.New("broker down")

	o, err := f.checkout.PlaceOrder(context.Background(), cart, customer)
	require.NoError(t, err)
	assert.NotZero(t, o.ID)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "order notification failed", entry.Message)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := setup(t)
	_, err := f.checkout.GetOrder(context.Background(), 7)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.checkout.GetOrder(context.Background(), 0)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// failingOrders breaks CreateLine after the order row was written
type failingOrders struct {
	repository.OrderRepository
}

var errLine = errors.New("create line failed")

func (failingOrders) CreateLine(context.Context, *domain.OrderLine) error { return errLine }

// failingClear breaks ClearCart after the order and its lines were written
type failingClear struct {
	repository.BasketRepository
}

var errClear = errors.New("clear failed")

func (failingClear) ClearCart(context.Context, string) error { return errClear }

func TestPlaceOrder_IsAtomic(t *testing.T) {
	cases := map[string]struct {
		build func(f *fixture) *CheckoutService
		want  error
	}{
		"create line fails": {
			build: func(f *fixture) *CheckoutService {
				return NewCheckoutService(f.basket, failingOrders{f.orders}, f.tx, f.notifier, f.baskets.log)
			},
			want: errLine,
		},
		"clear cart fails": {
			build: func(f *fixture) *CheckoutService {
				return NewCheckoutService(failingClear{f.basket}, f.orders, f.tx, f.notifier, f.baskets.log)
			},
			want: errClear,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := setup(t)
			p := f.product(t, "Melon", 5, "150.00")
			require.NoError(t, f.baskets.Add(ctx, cart, p.ID))
			require.NoError(t, f.baskets.Add(ctx, cart, p.ID))

			_, err := tc.build(f).PlaceOrder(ctx, cart, customer)
			require.ErrorIs(t, err, tc.want)

			orders, err := f.checkout.ListOrders(ctx)
			require.NoError(t, err)
			assert.Empty(t, orders)
			assert.Equal(t, int64(2), f.quantity(t, cart, p.ID))
			assert.Equal(t, int64(3), f.residue(t, p.ID))
			assert.Empty(t, f.notifier.placed)
		})
	}
}
