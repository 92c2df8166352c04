package leads

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"renda-edge/internal/circuitbreaker"
	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/common/utils"
	"renda-edge/internal/storage"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connector opens a channel on a fresh connection. The returned closer
// closes the connection.
type Connector func(url string) (Channel, func() error, error)

// DialAMQP is the production Connector.
func DialAMQP(url string) (Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// AMQPPublisher publishes ContactEvents to a durable topic exchange with
// routing key "contact.created". The connection is opened lazily. A publish
// that fails on a dead channel is retried once on a fresh connection.
type AMQPPublisher struct {
	url      string
	exchange string
	connect  Connector
	breaker  *circuitbreaker.Breaker
	retry    utils.RetryConfig
	logger   logging.Logger

	mu        sync.Mutex
	ch        Channel
	closeConn func() error
}

func NewAMQPPublisher(url, exchange string, connect Connector, logger logging.Logger) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.ConfigError("AMQP URL is required")
	}
	if exchange == "" {
		exchange = "renda.leads"
	}
	if connect == nil {
		connect = DialAMQP
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("component", "leads_amqp"), logging.String("exchange", exchange))
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		connect:  connect,
		breaker:  circuitbreaker.New("amqp", circuitbreaker.NotifyConfig, logger),
		retry: utils.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  50 * time.Millisecond,
			BackoffFactor: 1,
			Retryable:     isPublishError,
		},
		logger: logger,
	}, nil
}

// channel returns the open channel, dialing and declaring the exchange when
// there is none. Caller holds p.mu.
func (p *AMQPPublisher) channel() (Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, closeConn, err := p.connect(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		closeConn()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.ch, p.closeConn = ch, closeConn
	return ch, nil
}

// reset drops the current connection. Caller holds p.mu.
func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.closeConn != nil {
		p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

func (p *AMQPPublisher) PublishContact(ctx context.Context, msg *storage.ContactMessage) error {
	body, err := json.Marshal(NewContactEvent(msg))
	if err != nil {
		return errors.InternalError("failed to encode contact event", err)
	}

	return p.breaker.Execute(ctx, func() error {
		return utils.RetryWithBackoff(ctx, p.retry, func() error {
			return p.publish(msg.ID, body)
		})
	})
}

func (p *AMQPPublisher) publish(id string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.Publish(p.exchange, EventContactCreated, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    id,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return &publishError{id: id, err: err}
	}
	p.logger.Debug("Published contact event", logging.String("contact_id", id))
	return nil
}

// publishError marks a failure on an established channel. Dial failures are
// not retried; the breaker handles a broker that stays down.
type publishError struct {
	id  string
	err error
}

func (e *publishError) Error() string {
	return fmt.Sprintf("failed to publish contact %s: %v", e.id, e.err)
}

func (e *publishError) Unwrap() error { return e.err }

func isPublishError(err error) bool {
	var pe *publishError
	return stderrors.As(err, &pe)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
