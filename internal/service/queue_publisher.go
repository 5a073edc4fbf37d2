package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/utility-audit-portal/internal/queue"
)

// Publisher emits portal events.  Publishing is best effort: failures are
// logged and never change the outcome of the operation that raised them.
type Publisher interface {
	Publish(ctx context.Context, ev queue.Event)
}

// AMQPPublisher publishes to queue.EventsQueue on RabbitMQ.  The connection
// is opened lazily and dropped after any error so the next event redials.
type AMQPPublisher struct {
	url         string
	log         *slog.Logger
	dialTimeout time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, log: log, dialTimeout: queue.DialTimeout}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.Event) {
	if err := p.publish(ctx, ev); err != nil {
		p.log.Warn("rabbitmq: publish failed", "event", ev.Type, "err", err)
	}
}

func (p *AMQPPublisher) publish(ctx context.Context, ev queue.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err = p.ch.PublishWithContext(ctx,
		"",                // default exchange
		queue.EventsQueue, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.reset()
	}
	return err
}

// connect must be called with mu held.  The dial is bounded so a dead
// broker cannot stall every publisher queued on mu.
func (p *AMQPPublisher) connect() error {
	p.reset()
	conn, err := queue.Dial(p.url, p.dialTimeout)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if _, err := ch.QueueDeclare(queue.EventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// LogPublisher writes events through slog only; used when no broker is
// configured.
type LogPublisher struct{ Log *slog.Logger }

func (p LogPublisher) Publish(_ context.Context, ev queue.Event) {
	p.Log.Info("event", "type", ev.Type, "actor", ev.ActorID, "subject", ev.SubjectID)
}
