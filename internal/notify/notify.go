// Package notify публикует события о заказах во внешний брокер.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// EventOrderPlaced тип события и ключ маршрутизации по умолчанию
const EventOrderPlaced = "order.placed"

type EventLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderEvent тело сообщения order.placed
type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    int64           `json:"order_id"`
	ClientName string          `json:"client_name"`
	Phone      string          `json:"phone"`
	Address    string          `json:"address"`
	CreatedAt  time.Time       `json:"created_at"`
	Lines      []EventLine     `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

func NewOrderEvent(o domain.Order) OrderEvent {
	ev := OrderEvent{
		Type:       EventOrderPlaced,
		OrderID:    o.ID,
		ClientName: o.ClientName,
		Phone:      o.Phone,
		Address:    o.Address,
		CreatedAt:  o.CreatedAt,
		Lines:      make([]EventLine, 0, len(o.Lines)),
		Total:      o.Total(),
	}
	for _, l := range o.Lines {
		ev.Lines = append(ev.Lines, EventLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return ev
}

// Noop используется, когда брокер не настроен
type Noop struct{}

func (Noop) OrderPlaced(context.Context, domain.Order) error { return nil }
