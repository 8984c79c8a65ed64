package repository

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrProductInUse товар нельзя удалить, пока на него ссылаются корзины или заказы
	ErrProductInUse = errors.New("product is referenced by basket or order lines")
	// ErrOutOfStock изменение остатка сделало бы его отрицательным
	ErrOutOfStock = errors.New("out of stock")
)

// ProductFilter параметры фильтрации и страницы списка товаров.
// Limit == 0 означает «без ограничения».
type ProductFilter struct {
	TitleSubstring string
	Limit          int
	Offset         int
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	// List возвращает товары, отсортированные по названию, затем по id
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	Count(ctx context.Context, f ProductFilter) (int, error)
	// AdjustResidue атомарно меняет остаток на delta; ErrOutOfStock, если остаток ушёл бы в минус
	AdjustResidue(ctx context.Context, id int64, delta int64) error
}

// BasketRepository интерфейс хранилища строк корзины
type BasketRepository interface {
	GetLine(ctx context.Context, cartID string, productID int64) (*domain.BasketLine, error)
	// SaveLine создаёт строку (ID == 0) или обновляет существующую
	SaveLine(ctx context.Context, l *domain.BasketLine) error
	DeleteLine(ctx context.Context, id int64) error
	// ListLines возвращает строки корзины с загруженными товарами, по названию товара
	ListLines(ctx context.Context, cartID string) ([]domain.BasketLine, error)
	ClearCart(ctx context.Context, cartID string) error
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	CreateLine(ctx context.Context, l *domain.OrderLine) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// List возвращает заказы от новых к старым
	List(ctx context.Context) ([]domain.Order, error)
}

// TxManager абстракция транзакции: при ошибке fn все изменения откатываются.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
