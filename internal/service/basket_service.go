package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// BasketService меняет корзину и остатки товаров в одной транзакции
type BasketService struct {
	products repository.ProductRepository
	basket   repository.BasketRepository
	tx       repository.TxManager
	log      logrus.FieldLogger
}

func NewBasketService(products repository.ProductRepository, basket repository.BasketRepository, tx repository.TxManager, log logrus.FieldLogger) *BasketService {
	return &BasketService{products: products, basket: basket, tx: tx, log: log}
}

// Add кладёт одну единицу товара в корзину cartID и списывает её с остатка.
// Если остатка нет, ничего не меняется и ошибки нет.
func (s *BasketService) Add(ctx context.Context, cartID string, productID int64) error {
	if cartID == "" {
		return ErrInvalidInput
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if p.Residue <= 0 {
			s.log.WithFields(logrus.Fields{"cart_id": cartID, "product_id": productID}).Debug("add to basket skipped: no residue")
			return nil
		}
		// conditional decrement guards against a concurrent add taking the last unit
		if err := s.products.AdjustResidue(ctx, productID, -1); err != nil {
			if errors.Is(err, repository.ErrOutOfStock) {
				return nil
			}
			return err
		}
		line, err := s.basket.GetLine(ctx, cartID, productID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			line = &domain.BasketLine{CartID: cartID, ProductID: productID}
		case err != nil:
			return err
		}
		line.Quantity++
		return s.basket.SaveLine(ctx, line)
	})
}

// Remove возвращает одну единицу товара из корзины на склад.
// Строка, у которой количество дошло до нуля, удаляется.
func (s *BasketService) Remove(ctx context.Context, cartID string, productID int64) error {
	if cartID == "" {
		return ErrInvalidInput
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.products.GetByID(ctx, productID); err != nil {
			return err
		}
		line, err := s.basket.GetLine(ctx, cartID, productID)
		if err != nil {
			return err
		}
		if line.Quantity > 0 {
			if err := s.products.AdjustResidue(ctx, productID, 1); err != nil {
				return err
			}
			line.Quantity--
		}
		if line.Quantity == 0 {
			return s.basket.DeleteLine(ctx, line.ID)
		}
		return s.basket.SaveLine(ctx, line)
	})
}

// Get отдаёт содержимое корзины и сумму Σ quantity × price
func (s *BasketService) Get(ctx context.Context, cartID string) (*domain.Basket, error) {
	lines, err := s.basket.ListLines(ctx, cartID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return &domain.Basket{CartID: cartID, Lines: lines, Total: total}, nil
}
