package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// Publisher is the part of *amqp.Channel the sender needs.
//
//go:generate mockgen -source amqp.go -destination amqp_mock.go -package notification
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RoutingKey returns the topic a message of kind is published with.
func RoutingKey(m Message) string {
	return "ledger.notification." + string(m.Kind)
}

// AMQPSender publishes messages to a topic exchange behind a circuit breaker.
type AMQPSender struct {
	publisher Publisher
	exchange  string
	breaker   *gobreaker.CircuitBreaker
}

// BreakerSettings returns the circuit breaker settings used for the broker.
func BreakerSettings(logger zerolog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "amqp-notifications",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
}

// NewAMQPSender returns a sender publishing to exchange.
func NewAMQPSender(publisher Publisher, exchange string, settings gobreaker.Settings) *AMQPSender {
	return &AMQPSender{
		publisher: publisher,
		exchange:  exchange,
		breaker:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Send publishes m as a persistent JSON message.
func (s *AMQPSender) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.publisher.PublishWithContext(ctx, s.exchange, RoutingKey(m), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         string(m.Kind),
			Body:         body,
		})
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errorspkg.ErrUnavailable
	}

	return err
}

// DialAMQP connects to the broker and declares the durable topic exchange.
//
// The returned close function releases the channel and the connection.
func DialAMQP(url, exchange string, logger zerolog.Logger) (*AMQPSender, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	closeFn := func() error {
		return errors.Join(ch.Close(), conn.Close())
	}

	return NewAMQPSender(ch, exchange, BreakerSettings(logger)), closeFn, nil
}
