package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockledger/stockledger-backend/pkg/config"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

const deadLetterExchange = "dlx.events"

// binding is a queue bound to an exchange, replayed after a reconnect
type binding struct {
	queue, exchange, key string
}

// RabbitMQ owns the broker connection and the single channel shared by the
// stock publisher and the catalog consumer. Every exchange, queue and binding
// declared through it is remembered and declared again when Watch reconnects.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	logger  *logger.Logger

	mu     sync.RWMutex
	closed bool

	exchanges map[string]struct{}
	queues    map[string]struct{}
	bindings  []binding
	dlq       string
}

// New dials the broker and opens the shared channel
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		config:    cfg,
		logger:    log.WithComponent("rabbitmq"),
		exchanges: make(map[string]struct{}),
		queues:    make(map[string]struct{}),
	}

	if err := rmq.dial(); err != nil {
		return nil, err
	}
	return rmq, nil
}

func (r *RabbitMQ) dial() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.conn, r.channel = conn, ch
	r.logger.Info().Int("prefetch", r.config.PrefetchCount).Msg("connected to RabbitMQ")
	return nil
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Connection returns the current connection
func (r *RabbitMQ) Connection() *amqp.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

// Watch re-establishes the connection whenever the broker drops it, until
// ctx is done or Close is called
func (r *RabbitMQ) Watch(ctx context.Context) {
	for {
		closed := r.Connection().NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-ctx.Done():
			return
		case amqpErr, ok := <-closed:
			if !ok {
				// closed on purpose
				return
			}
			r.logger.Warn().Str("reason", amqpErr.Reason).Int("code", amqpErr.Code).Msg("RabbitMQ connection lost")

			if err := r.Reconnect(ctx); err != nil {
				r.logger.Error().Err(err).Msg("giving up on RabbitMQ")
				return
			}
		}
	}
}

// Close closes the channel and the connection; Watch stops reconnecting
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports whether the broker connection is usable
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange such as stock.events
func (r *RabbitMQ) DeclareExchange(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := declareExchange(r.channel, name); err != nil {
		return err
	}
	r.exchanges[name] = struct{}{}
	return nil
}

// DeclareQueue declares a durable queue whose rejected messages go to the
// dead letter exchange
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, err := declareQueue(r.channel, name)
	if err != nil {
		return q, err
	}
	r.queues[name] = struct{}{}
	return q, nil
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.QueueBind(queueName, routingKey, exchange, false, nil); err != nil {
		return err
	}
	r.bindings = append(r.bindings, binding{queue: queueName, exchange: exchange, key: routingKey})
	return nil
}

// DeclareDeadLetterQueue declares dlx.events and the service's dlq.<service>
// queue catching every routing key
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := declareDeadLetter(r.channel, serviceName); err != nil {
		return err
	}
	r.dlq = serviceName
	return nil
}

// Reconnect dials again, backing off ReconnectDelay between attempts, and
// replays the declared topology on the new channel
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connection is permanently closed")
	}

	for i := 0; i < r.config.MaxRetries; i++ {
		r.logger.Info().Int("attempt", i+1).Msg("attempting to reconnect to RabbitMQ")

		err := r.dial()
		if err == nil {
			err = r.redeclare()
		}
		if err == nil {
			return nil
		}
		r.logger.Warn().Err(err).Msg("reconnection attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.ReconnectDelay):
		}
	}

	return fmt.Errorf("failed to reconnect after %d attempts", r.config.MaxRetries)
}

func (r *RabbitMQ) redeclare() error {
	if r.dlq != "" {
		if err := declareDeadLetter(r.channel, r.dlq); err != nil {
			return err
		}
	}
	for name := range r.exchanges {
		if err := declareExchange(r.channel, name); err != nil {
			return fmt.Errorf("failed to redeclare exchange %s: %w", name, err)
		}
	}
	for name := range r.queues {
		if _, err := declareQueue(r.channel, name); err != nil {
			return fmt.Errorf("failed to redeclare queue %s: %w", name, err)
		}
	}
	for _, b := range r.bindings {
		if err := r.channel.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to rebind %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": deadLetterExchange},
	)
}

func declareDeadLetter(ch *amqp.Channel, serviceName string) error {
	if err := declareExchange(ch, deadLetterExchange); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	queueName := "dlq." + serviceName
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(queueName, "#", deadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}
	return nil
}
