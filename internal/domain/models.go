package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category категория товара
type Category string

const (
	CategoryOther      Category = "other"
	CategoryFruits     Category = "fruits"
	CategoryVegetables Category = "vegetables"
	CategoryBeverage   Category = "beverage"
	CategoryBakery     Category = "bakery"
)

// Categories перечисляет допустимые категории в порядке отображения
var Categories = []Category{CategoryOther, CategoryFruits, CategoryVegetables, CategoryBeverage, CategoryBakery}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Product представляет товар магазина. Residue: остаток, доступный для продажи.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title" validate:"required,max=100"`
	Description string          `json:"description,omitempty" validate:"max=2000"`
	Category    Category        `json:"category" validate:"required,category"`
	Residue     int64           `json:"residue" validate:"gte=0"`
	Price       decimal.Decimal `json:"price" validate:"money"`
}

// BasketLine позиция корзины: не более одной строки на пару (корзина, товар)
type BasketLine struct {
	ID        int64    `json:"id"`
	CartID    string   `json:"cart_id"`
	ProductID int64    `json:"product_id"`
	Product   *Product `json:"product,omitempty"`
	Quantity  int64    `json:"quantity"`
}

// Subtotal quantity × price; нулевой, если товар не загружен
func (l BasketLine) Subtotal() decimal.Decimal {
	if l.Product == nil {
		return decimal.Zero
	}
	return l.Product.Price.Mul(decimal.NewFromInt(l.Quantity))
}

// Basket представление корзины с итоговой суммой
type Basket struct {
	CartID string          `json:"cart_id"`
	Lines  []BasketLine    `json:"lines"`
	Total  decimal.Decimal `json:"total"`
}

// CustomerInfo данные покупателя из формы заказа
type CustomerInfo struct {
	ClientName string `json:"client_name" form:"client_name" validate:"required,max=100"`
	Phone      string `json:"phone" form:"phone" validate:"required,max=100"`
	Address    string `json:"address" form:"address" validate:"required,max=100"`
}

// OrderLine снимок позиции корзины на момент оформления заказа
type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order сущность заказа. CreatedAt выставляется один раз при создании.
type Order struct {
	ID         int64       `json:"id"`
	ClientName string      `json:"client_name"`
	Phone      string      `json:"phone"`
	Address    string      `json:"address"`
	CreatedAt  time.Time   `json:"created_at"`
	Lines      []OrderLine `json:"lines"`
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return total
}
