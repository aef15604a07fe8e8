package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clubcal/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const (
	EventCreated = "booking.event.created.v1"
	EventUpdated = "booking.event.updated.v1"
	EventDeleted = "booking.event.deleted.v1"
)

// Event describes a calendar mutation made through the service.
type Event struct {
	Type          string    `json:"-"`
	CalendarID    string    `json:"calendar_id"`
	EventID       string    `json:"event_id"`
	ExternalID    string    `json:"external_id,omitempty"`
	Start         string    `json:"start_time,omitempty"`
	End           string    `json:"end_time,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher hands booking events to Kafka from a single background loop so
// request handlers never wait on the broker. A nil or disabled Publisher
// drops everything silently.
type Publisher struct {
	logger *slog.Logger
	writer messageWriter
	queue  chan kafka.Message
}

func NewPublisher(logger *slog.Logger, brokers []string, buffer int) *Publisher {
	if len(brokers) == 0 {
		logger.Warn("booking event publisher disabled (no kafka brokers configured)")
		return newPublisher(logger, nil, 0)
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Balancer: &kafka.Hash{},
	})
	return newPublisher(logger, w, buffer)
}

func newPublisher(logger *slog.Logger, w messageWriter, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &Publisher{logger: logger, writer: w}
	if w != nil {
		p.queue = make(chan kafka.Message, buffer)
	}
	return p
}

func (p *Publisher) Enabled() bool { return p != nil && p.writer != nil }

// Publish enqueues evt without blocking. When the queue is full the event is
// dropped and logged.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if !p.Enabled() {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("marshal booking event", "err", err, "event_type", evt.Type)
		return
	}
	msg := kafkax.NewMessage(ctx, evt.EventID, evt.Type, payload, map[string]string{
		"correlation_id": evt.CorrelationID,
	})
	msg.Topic = evt.Type

	select {
	case p.queue <- msg:
	default:
		p.logger.Warn("booking event dropped (queue full)", "event_type", evt.Type, "event_id", evt.EventID)
	}
}

// Run writes queued messages until ctx is cancelled, then flushes what is
// left for up to five seconds and closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Warn("close kafka writer", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case msg := <-p.queue:
			p.write(context.WithoutCancel(ctx), msg)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("booking event publish failed", "err", err, "topic", msg.Topic)
	}
}
