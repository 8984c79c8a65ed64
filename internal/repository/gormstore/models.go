package gormstore

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/domain"
)

type productRow struct {
	ID          int64           `gorm:"primaryKey"`
	Title       string          `gorm:"size:100;not null;index"`
	TitleSearch string          `gorm:"size:100;not null;default:'';index"` // strings.ToLower(Title)
	Description string          `gorm:"size:2000"`
	Category    string          `gorm:"size:15;not null;default:other"`
	Residue     int64           `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:decimal(9,2);not null"`
}

func (productRow) TableName() string { return "products" }

type basketLineRow struct {
	ID        int64      `gorm:"primaryKey"`
	CartID    string     `gorm:"size:36;not null;uniqueIndex:idx_basket_cart_product"`
	ProductID int64      `gorm:"not null;uniqueIndex:idx_basket_cart_product"`
	Product   productRow `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Quantity  int64      `gorm:"not null;default:0"`
}

func (basketLineRow) TableName() string { return "basket_lines" }

type orderRow struct {
	ID         int64     `gorm:"primaryKey"`
	ClientName string    `gorm:"size:100;not null"`
	Phone      string    `gorm:"size:100;not null"`
	Address    string    `gorm:"size:100;not null"`
	CreatedAt  time.Time `gorm:"not null"`

	Lines []orderLineRow `gorm:"foreignKey:OrderID"`
}

func (orderRow) TableName() string { return "orders" }

type orderLineRow struct {
	ID        int64           `gorm:"primaryKey"`
	OrderID   int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null;index"`
	Product   productRow      `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(9,2);not null"`
}

func (orderLineRow) TableName() string { return "order_lines" }

// AutoMigrate создаёт схему средствами gorm (используется для SQLite и в тестах)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&productRow{}, &basketLineRow{}, &orderRow{}, &orderLineRow{})
}

func productFromDomain(p domain.Product) productRow {
	return productRow{
		ID:          p.ID,
		Title:       p.Title,
		TitleSearch: strings.ToLower(p.Title),
		Description: p.Description,
		Category:    string(p.Category),
		Residue:     p.Residue,
		Price:       p.Price,
	}
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    domain.Category(r.Category),
		Residue:     r.Residue,
		Price:       r.Price,
	}
}

func (r basketLineRow) toDomain() domain.BasketLine {
	l := domain.BasketLine{ID: r.ID, CartID: r.CartID, ProductID: r.ProductID, Quantity: r.Quantity}
	if r.Product.ID != 0 {
		p := r.Product.toDomain()
		l.Product = &p
	}
	return l
}

func (r orderLineRow) toDomain() domain.OrderLine {
	return domain.OrderLine{ID: r.ID, OrderID: r.OrderID, ProductID: r.ProductID, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
}

func (r orderRow) toDomain() domain.Order {
	o := domain.Order{
		ID:         r.ID,
		ClientName: r.ClientName,
		Phone:      r.Phone,
		Address:    r.Address,
		CreatedAt:  r.CreatedAt.UTC(),
		Lines:      make([]domain.OrderLine, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		o.Lines = append(o.Lines, l.toDomain())
	}
	return o
}
