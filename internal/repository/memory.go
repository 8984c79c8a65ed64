package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
)

// MemoryStore объединённое in-memory хранилище и простой генератор ID
type MemoryStore struct {
	mu sync.RWMutex
	memoryState
}

type memoryState struct {
	nextProdID      int64
	nextLineID      int64
	nextOrderID     int64
	nextOrderLineID int64
	productsByID    map[int64]domain.Product
	linesByID       map[int64]domain.BasketLine
	ordersByID      map[int64]domain.Order
	orderLinesByID  map[int64]domain.OrderLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memoryState: memoryState{
		nextProdID:      1,
		nextLineID:      1,
		nextOrderID:     1,
		nextOrderLineID: 1,
		productsByID:    make(map[int64]domain.Product),
		linesByID:       make(map[int64]domain.BasketLine),
		ordersByID:      make(map[int64]domain.Order),
		orderLinesByID:  make(map[int64]domain.OrderLine),
	}}
}

// clone copies every map so a failed transaction can restore it
func (s memoryState) clone() memoryState {
	cp := s
	cp.productsByID = make(map[int64]domain.Product, len(s.productsByID))
	for k, v := range s.productsByID {
		cp.productsByID[k] = v
	}
	cp.linesByID = make(map[int64]domain.BasketLine, len(s.linesByID))
	for k, v := range s.linesByID {
		cp.linesByID[k] = v
	}
	cp.ordersByID = make(map[int64]domain.Order, len(s.ordersByID))
	for k, v := range s.ordersByID {
		cp.ordersByID[k] = v
	}
	cp.orderLinesByID = make(map[int64]domain.OrderLine, len(s.orderLinesByID))
	for k, v := range s.orderLinesByID {
		cp.orderLinesByID[k] = v
	}
	return cp
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var _ ProductRepository = (*MemoryStore)(nil)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextProdID
	m.nextProdID++
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[p.ID]; !ok {
		return ErrNotFound
	}
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return ErrNotFound
	}
	for _, l := range m.linesByID {
		if l.ProductID == id {
			return ErrProductInUse
		}
	}
	for _, l := range m.orderLinesByID {
		if l.ProductID == id {
			return ErrProductInUse
		}
	}
	delete(m.productsByID, id)
	return nil
}

func (m *MemoryStore) filtered(f ProductFilter) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if !containsIgnoreCase(p.Title, f.TitleSubstring) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := m.filtered(f)
	if f.Offset >= len(out) {
		return []domain.Product{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Count(ctx context.Context, f ProductFilter) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	return len(m.filtered(f)), nil
}

func (m *MemoryStore) AdjustResidue(ctx context.Context, id int64, delta int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Residue+delta < 0 {
		return ErrOutOfStock
	}
	p.Residue += delta
	m.productsByID[id] = p
	return nil
}

// BasketRepository implementation on wrapper type
type MemoryBasket struct{ store *MemoryStore }

func NewMemoryBasket(store *MemoryStore) *MemoryBasket { return &MemoryBasket{store: store} }

var _ BasketRepository = (*MemoryBasket)(nil)

func (mb *MemoryBasket) GetLine(ctx context.Context, cartID string, productID int64) (*domain.BasketLine, error) {
	mb.store.rlock(ctx)
	defer mb.store.runlock(ctx)
	for _, l := range mb.store.linesByID {
		if l.CartID == cartID && l.ProductID == productID {
			cp := l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mb *MemoryBasket) SaveLine(ctx context.Context, l *domain.BasketLine) error {
	mb.store.wlock(ctx)
	defer mb.store.wunlock(ctx)
	if _, ok := mb.store.productsByID[l.ProductID]; !ok {
		return ErrNotFound
	}
	row := *l
	row.Product = nil
	if l.ID == 0 {
		l.ID = mb.store.nextLineID
		mb.store.nextLineID++
		row.ID = l.ID
	} else if _, ok := mb.store.linesByID[l.ID]; !ok {
		return ErrNotFound
	}
	mb.store.linesByID[row.ID] = row
	return nil
}

func (mb *MemoryBasket) DeleteLine(ctx context.Context, id int64) error {
	mb.store.wlock(ctx)
	defer mb.store.wunlock(ctx)
	if _, ok := mb.store.linesByID[id]; !ok {
		return ErrNotFound
	}
	delete(mb.store.linesByID, id)
	return nil
}

func (mb *MemoryBasket) ListLines(ctx context.Context, cartID string) ([]domain.BasketLine, error) {
	mb.store.rlock(ctx)
	defer mb.store.runlock(ctx)
	out := make([]domain.BasketLine, 0)
	for _, l := range mb.store.linesByID {
		if l.CartID != cartID {
			continue
		}
		p := mb.store.productsByID[l.ProductID]
		l.Product = &p
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Product.Title != out[j].Product.Title {
			return out[i].Product.Title < out[j].Product.Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (mb *MemoryBasket) ClearCart(ctx context.Context, cartID string) error {
	mb.store.wlock(ctx)
	defer mb.store.wunlock(ctx)
	for id, l := range mb.store.linesByID {
		if l.CartID == cartID {
			delete(mb.store.linesByID, id)
		}
	}
	return nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o.ID = mo.store.nextOrderID
	mo.store.nextOrderID++
	o.CreatedAt = time.Now().UTC()
	row := *o
	row.Lines = nil
	mo.store.ordersByID[o.ID] = row
	return nil
}

func (mo *MemoryOrders) CreateLine(ctx context.Context, l *domain.OrderLine) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[l.OrderID]; !ok {
		return ErrNotFound
	}
	if _, ok := mo.store.productsByID[l.ProductID]; !ok {
		return ErrNotFound
	}
	l.ID = mo.store.nextOrderLineID
	mo.store.nextOrderLineID++
	mo.store.orderLinesByID[l.ID] = *l
	return nil
}

// linesOf collects order lines sorted by id; caller holds the lock
func (mo *MemoryOrders) linesOf(orderID int64) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0)
	for _, l := range mo.store.orderLinesByID {
		if l.OrderID == orderID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	cp.Lines = mo.linesOf(id)
	return &cp, nil
}

func (mo *MemoryOrders) List(ctx context.Context) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0, len(mo.store.ordersByID))
	for _, o := range mo.store.ordersByID {
		o.Lines = mo.linesOf(o.ID)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested call joins the outer transaction
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	saved := tx.store.memoryState.clone()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.memoryState = saved
		return err
	}
	return nil
}
