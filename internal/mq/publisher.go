package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/water-softener-worker/internal/bwt"
	"github.com/septivank/water-softener-worker/internal/sensor"
	"go.uber.org/zap"
)

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn     *Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// SnapshotEvent carries the normalized device state plus the evaluated
// sensor readings for one successful poll. It is the full contract the
// host sensor layer consumes each tick.
type SnapshotEvent struct {
	EventID           string             `json:"event_id"`
	DeviceKey         string             `json:"device_key"`
	Date              string             `json:"date"`
	WaterConsumption  float64            `json:"water_consumption"`
	WaterCubicMeters  float64            `json:"water_consumption_m3"`
	EstimatedCost     float64            `json:"estimated_cost"`
	RegenerationCount int                `json:"regeneration_count"`
	PowerOutage       bool               `json:"power_outage"`
	SaltAlarm         bool               `json:"salt_alarm"`
	Online            bool               `json:"online"`
	Connected         bool               `json:"connected"`
	LastSeen          string             `json:"last_seen"`
	History           []bwt.HistoryEntry `json:"history"`
	Readings          []sensor.Reading   `json:"readings"`
	ValidationStatus  string             `json:"validation_status"`
	AnomalyReason     string             `json:"anomaly_reason,omitempty"`
	PolledAt          time.Time          `json:"polled_at"`
}

// PollFailedEvent tells consumers the latest poll produced no fresh
// data so they can mark the device's sensors unavailable.
type PollFailedEvent struct {
	EventID   string    `json:"event_id"`
	DeviceKey string    `json:"device_key"`
	ErrorKind string    `json:"error_kind"`
	Error     string    `json:"error"`
	PolledAt  time.Time `json:"polled_at"`
}

// PublishSnapshotEvent publishes the state of a successful poll
func (p *Publisher) PublishSnapshotEvent(ctx context.Context, event SnapshotEvent, routingKey string) error {
	if err := p.publish(ctx, event, routingKey); err != nil {
		return err
	}

	p.logger.Debug("published snapshot event",
		zap.String("routing_key", routingKey),
		zap.String("device_key", event.DeviceKey),
		zap.String("date", event.Date),
	)
	return nil
}

// PublishPollFailed publishes a poll failure notification
func (p *Publisher) PublishPollFailed(ctx context.Context, event PollFailedEvent, routingKey string) error {
	if err := p.publish(ctx, event, routingKey); err != nil {
		return err
	}

	p.logger.Debug("published poll-failed event",
		zap.String("routing_key", routingKey),
		zap.String("device_key", event.DeviceKey),
		zap.String("error_kind", event.ErrorKind),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, event any, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
