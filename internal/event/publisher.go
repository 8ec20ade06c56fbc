package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// AlertPublisher forwards proctoring alerts to the message broker.
type AlertPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	log        zerolog.Logger
}

// NewAlertPublisher dials RabbitMQ and declares the durable topic exchange.
func NewAlertPublisher(url string, log zerolog.Logger) (*AlertPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	exchange := config.WorkerKey.AlertExchange
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log = log.With().Str("component", "alert_publisher").Logger()
	log.Info().Str("exchange", exchange).Msg("Alert publisher initialized")

	return &AlertPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: config.WorkerKey.AlertRoutingKey,
		log:        log,
	}, nil
}

// Publish sends one persistent message per alert notification. It stops at
// the first failure and reports how many were published.
func (p *AlertPublisher) Publish(ctx context.Context, batch []model.AlertNotification) (int, error) {
	for i, n := range batch {
		body, err := json.Marshal(n)
		if err != nil {
			return i, fmt.Errorf("marshal alert: %w", err)
		}

		err = p.channel.PublishWithContext(ctx,
			p.exchange,   // exchange
			p.routingKey, // routing key
			false,        // mandatory
			false,        // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
				Headers: amqp.Table{
					"session_id":   n.Event.SessionID.String(),
					"candidate_id": strconv.Itoa(n.CandidateID),
				},
			},
		)
		if err != nil {
			return i, fmt.Errorf("publish alert: %w", err)
		}
	}
	return len(batch), nil
}

// Close releases the channel and connection.
func (p *AlertPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
