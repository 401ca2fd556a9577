package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"main/internal/config"
	"main/internal/domain/interfaces"
)

// Publisher broadcasts instrument update events to a RabbitMQ fanout
// exchange. Downstream consumers (the read API tier) subscribe with their own
// transient queues; lost messages are tolerated.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logrus.Entry
	mu       sync.Mutex
}

var _ interfaces.EventPublisher = (*Publisher)(nil)

func NewPublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.UpdatesExchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.UpdatesExchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.UpdatesExchange, err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: cfg.UpdatesExchange,
		logger:   logger.WithField("component", "broker"),
	}, nil
}

func (p *Publisher) PublishUpdate(ctx context.Context, event interfaces.UpdateEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal update event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Errorf("close rabbitmq channel: %v", err)
	}
	return p.conn.Close()
}
