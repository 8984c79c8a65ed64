package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// OrderNotifier получает уведомление о заказе после фиксации транзакции
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, o domain.Order) error
}

// CheckoutService оформляет заказ из корзины
type CheckoutService struct {
	basket   repository.BasketRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
	notifier OrderNotifier
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewCheckoutService(basket repository.BasketRepository, orders repository.OrderRepository, tx repository.TxManager, notifier OrderNotifier, log logrus.FieldLogger) *CheckoutService {
	return &CheckoutService{
		basket:   basket,
		orders:   orders,
		tx:       tx,
		notifier: notifier,
		validate: newValidator(),
		log:      log,
	}
}

// PlaceOrder проверяет данные покупателя, создаёт заказ со снимком строк корзины
// и очищает корзину. Остатки не меняются: они списаны при добавлении в корзину.
func (s *CheckoutService) PlaceOrder(ctx context.Context, cartID string, info domain.CustomerInfo) (*domain.Order, error) {
	info.ClientName = strings.TrimSpace(info.ClientName)
	info.Phone = strings.TrimSpace(info.Phone)
	info.Address = strings.TrimSpace(info.Address)
	if err := validate(s.validate, info); err != nil {
		return nil, err
	}
	if cartID == "" {
		return nil, ErrInvalidInput
	}

	var created *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.basket.ListLines(ctx, cartID)
		if err != nil {
			return err
		}
		o := domain.Order{
			ClientName: info.ClientName,
			Phone:      info.Phone,
			Address:    info.Address,
		}
		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}
		o.Lines = make([]domain.OrderLine, 0, len(lines))
		for _, bl := range lines {
			ol := domain.OrderLine{
				OrderID:   o.ID,
				ProductID: bl.ProductID,
				Quantity:  bl.Quantity,
			}
			if bl.Product != nil {
				ol.UnitPrice = bl.Product.Price
			}
			if err := s.orders.CreateLine(ctx, &ol); err != nil {
				return err
			}
			o.Lines = append(o.Lines, ol)
		}
		if err := s.basket.ClearCart(ctx, cartID); err != nil {
			return err
		}
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"order_id": created.ID, "lines": len(created.Lines)})
	log.Info("order placed")
	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, *created); err != nil {
			log.WithError(err).Warn("order notification failed")
		}
	}
	return created, nil
}

// GetOrder возвращает заказ по id
func (s *CheckoutService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}
	return s.orders.GetByID(ctx, id)
}

func (s *CheckoutService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}
