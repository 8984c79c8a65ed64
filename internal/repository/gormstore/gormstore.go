// Package gormstore реализует репозитории поверх gorm (SQLite и PostgreSQL).
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Open открывает соединение gorm для драйвера "sqlite" или "postgres"
func Open(driver, dsn string, log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	cfg := &gorm.Config{}
	if log != nil {
		cfg.Logger = gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// single writer; transactions carry their own connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

type txKey struct{}

// conn возвращает транзакцию из контекста или общий пул
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// Tx менеджер транзакций gorm; вложенные вызовы присоединяются к внешней транзакции
type Tx struct{ db *gorm.DB }

func NewTx(db *gorm.DB) *Tx { return &Tx{db: db} }

var _ repository.TxManager = (*Tx)(nil)

func (t *Tx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Store репозиторий товаров
type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

var _ repository.ProductRepository = (*Store)(nil)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) filtered(ctx context.Context, f repository.ProductFilter) *gorm.DB {
	q := conn(ctx, s.db).Model(&productRow{})
	if f.TitleSubstring != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.TitleSubstring)) + "%"
		// title_search is lowered in Go: SQLite LOWER() folds ASCII only
		q = q.Where(`title_search LIKE ? ESCAPE '\'`, pattern)
	}
	return q
}

func (s *Store) Create(ctx context.Context, p *domain.Product) error {
	row := productFromDomain(*p)
	row.ID = 0
	if err := conn(ctx, s.db).Create(&row).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	p.ID = row.ID
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	if err := conn(ctx, s.db).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) Update(ctx context.Context, p *domain.Product) error {
	if _, err := s.GetByID(ctx, p.ID); err != nil {
		return err
	}
	row := productFromDomain(*p)
	if err := conn(ctx, s.db).Save(&row).Error; err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	db := conn(ctx, s.db)
	for _, ref := range []any{&basketLineRow{}, &orderLineRow{}} {
		var n int64
		if err := db.Model(ref).Where("product_id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("count product references: %w", err)
		}
		if n > 0 {
			return repository.ErrProductInUse
		}
	}
	if err := db.Delete(&productRow{}, id).Error; err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	q := s.filtered(ctx, f).Order("title").Order("id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var rows []productRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, f repository.ProductFilter) (int, error) {
	var n int64
	if err := s.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return int(n), nil
}

// AdjustResidue условное обновление: строка меняется, только если остаток не уходит в минус
func (s *Store) AdjustResidue(ctx context.Context, id int64, delta int64) error {
	res := conn(ctx, s.db).Model(&productRow{}).
		Where("id = ? AND residue + ? >= 0", id, delta).
		Update("residue", gorm.Expr("residue + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("adjust residue of product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return repository.ErrOutOfStock
	}
	return nil
}

// Basket репозиторий строк корзины
type Basket struct{ db *gorm.DB }

func NewBasket(db *gorm.DB) *Basket { return &Basket{db: db} }

var _ repository.BasketRepository = (*Basket)(nil)

func (b *Basket) GetLine(ctx context.Context, cartID string, productID int64) (*domain.BasketLine, error) {
	var row basketLineRow
	err := conn(ctx, b.db).Where("cart_id = ? AND product_id = ?", cartID, productID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get basket line: %w", err)
	}
	l := row.toDomain()
	return &l, nil
}

func (b *Basket) SaveLine(ctx context.Context, l *domain.BasketLine) error {
	db := conn(ctx, b.db)
	if l.ID == 0 {
		row := basketLineRow{CartID: l.CartID, ProductID: l.ProductID, Quantity: l.Quantity}
		if err := db.Omit("Product").Create(&row).Error; err != nil {
			return fmt.Errorf("create basket line: %w", err)
		}
		l.ID = row.ID
		return nil
	}
	res := db.Model(&basketLineRow{}).Where("id = ?", l.ID).Update("quantity", l.Quantity)
	if res.Error != nil {
		return fmt.Errorf("update basket line %d: %w", l.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (b *Basket) DeleteLine(ctx context.Context, id int64) error {
	res := conn(ctx, b.db).Delete(&basketLineRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete basket line %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (b *Basket) ListLines(ctx context.Context, cartID string) ([]domain.BasketLine, error) {
	var rows []basketLineRow
	err := conn(ctx, b.db).Preload("Product").Where("cart_id = ?", cartID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list basket lines: %w", err)
	}
	out := make([]domain.BasketLine, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Product.Title < out[j].Product.Title
	})
	return out, nil
}

func (b *Basket) ClearCart(ctx context.Context, cartID string) error {
	if err := conn(ctx, b.db).Where("cart_id = ?", cartID).Delete(&basketLineRow{}).Error; err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Orders репозиторий заказов
type Orders struct{ db *gorm.DB }

func NewOrders(db *gorm.DB) *Orders { return &Orders{db: db} }

var _ repository.OrderRepository = (*Orders)(nil)

func (o *Orders) Create(ctx context.Context, order *domain.Order) error {
	row := orderRow{
		ClientName: order.ClientName,
		Phone:      order.Phone,
		Address:    order.Address,
		CreatedAt:  time.Now().UTC(),
	}
	if err := conn(ctx, o.db).Omit("Lines").Create(&row).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	order.ID = row.ID
	order.CreatedAt = row.CreatedAt
	return nil
}

func (o *Orders) CreateLine(ctx context.Context, l *domain.OrderLine) error {
	row := orderLineRow{OrderID: l.OrderID, ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	if err := conn(ctx, o.db).Omit("Product").Create(&row).Error; err != nil {
		return fmt.Errorf("create order line: %w", err)
	}
	l.ID = row.ID
	return nil
}

func orderedLines(db *gorm.DB) *gorm.DB { return db.Order("id") }

func (o *Orders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var row orderRow
	if err := conn(ctx, o.db).Preload("Lines", orderedLines).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	order := row.toDomain()
	return &order, nil
}

func (o *Orders) List(ctx context.Context) ([]domain.Order, error) {
	var rows []orderRow
	if err := conn(ctx, o.db).Preload("Lines", orderedLines).Order("id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
