package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/internal/domain"
)

type Config struct {
	URL        string
	Exchange   string // topic exchange, default "orders_topic"
	RoutingKey string // default "order.placed"
	Timeout    time.Duration
}

type publisher interface {
	GetNextPublishSeqNo() uint64
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// confirmBuffer covers late confirms of publishes that already timed out
const confirmBuffer = 64

// AMQPNotifier публикует order.placed и ждёт подтверждения брокера
type AMQPNotifier struct {
	cfg  Config
	ch   publisher
	acks <-chan amqp.Confirmation // для publisher confirms
	mu   sync.Mutex               // сериализуем Publish при использовании confirms

	close func()
}

func (c *Config) setDefaults() {
	if c.Exchange == "" {
		c.Exchange = "orders_topic"
	}
	if c.RoutingKey == "" {
		c.RoutingKey = EventOrderPlaced
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Dial подключается к брокеру, объявляет exchange и включает publisher confirms
func Dial(cfg Config) (*AMQPNotifier, error) {
	cfg.setDefaults()
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	closeAll := func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		closeAll()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))

	n := newAMQPNotifier(cfg, ch, acks)
	n.close = closeAll
	return n, nil
}

func newAMQPNotifier(cfg Config, ch publisher, acks <-chan amqp.Confirmation) *AMQPNotifier {
	cfg.setDefaults()
	return &AMQPNotifier{cfg: cfg, ch: ch, acks: acks}
}

func (n *AMQPNotifier) Close() {
	if n.close != nil {
		n.close()
	}
}

func (n *AMQPNotifier) OrderPlaced(ctx context.Context, o domain.Order) error {
	body, err := json.Marshal(NewOrderEvent(o))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()

	tag := n.ch.GetNextPublishSeqNo()
	err = n.ch.PublishWithContext(ctx, n.cfg.Exchange, n.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			MessageId:     strconv.FormatInt(time.Now().UnixNano(), 10),
			CorrelationId: strconv.FormatInt(o.ID, 10),
			Timestamp:     time.Now().UTC(),
			Type:          EventOrderPlaced,
			Headers:       amqp.Table{"x-source": "storefront"},
			Body:          body,
		})
	if err != nil {
		return fmt.Errorf("publish order %d: %w", o.ID, err)
	}
	return n.waitConfirm(ctx, tag)
}

// waitConfirm ждёт подтверждения именно для tag; опоздавшие подтверждения
// предыдущих публикаций пропускаются
func (n *AMQPNotifier) waitConfirm(ctx context.Context, tag uint64) error {
	for {
		select {
		case conf, ok := <-n.acks:
			if !ok {
				return errors.New("confirm channel closed")
			}
			switch {
			case conf.DeliveryTag < tag:
				continue
			case conf.DeliveryTag > tag:
				return fmt.Errorf("confirm for delivery %d was lost", tag)
			case conf.Ack:
				return nil
			default:
				return errors.New("publish NACK from broker")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
