package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
)

const exchangeName = "spx.config"

// RabbitMQPublisher publishes config change events to a topic exchange with
// publisher confirms enabled.
type RabbitMQPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewRabbitMQPublisher initializes a connection and a channel and declares the
// spx.config topic exchange.
func NewRabbitMQPublisher(url string, l *slog.Logger) (*RabbitMQPublisher, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare topic exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate publisher confirms: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &RabbitMQPublisher{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	p.healthy.Store(true)
	p.conn.NotifyClose(p.connClosed)
	p.channel.NotifyClose(p.chanClosed)

	go func() {
		select {
		case err := <-p.connClosed:
			p.healthy.Store(false)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-p.chanClosed:
			p.healthy.Store(false)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-p.ctx.Done():
			return
		}
	}()

	l.Info("connected to RabbitMQ", "exchange", exchangeName)
	return p, nil
}

// PublishChange sends the event and blocks until the broker confirms it.
func (p *RabbitMQPublisher) PublishChange(ctx context.Context, event models.ChangeEvent) error {
	if !p.healthy.Load() {
		return fmt.Errorf("broker connection is closed")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	routingKey := "spx.rbclient." + event.Action
	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			Headers: amqp.Table{
				"event_id": event.EventID,
			},
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("failed to publish event to exchange", "event_id", event.EventID, "routing_key", routingKey, "error", err)
		return fmt.Errorf("publish call failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: event not persisted")
		}
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// Close gracefully shuts down the RabbitMQ resources.
func (p *RabbitMQPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Info("terminating RabbitMQ publisher")
		p.cancel()
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	})
	return nil
}
