package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/spec-kit/guest-requests/internal/api/dto"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/events"
)

// AuditRecord is one exported audit entry.
type AuditRecord struct {
	LocationID string                  `json:"location_id"`
	Status     domain.TicketStatus     `json:"status"`
	Version    int64                   `json:"version"`
	Event      dto.TicketEventResponse `json:"event"`
}

// MessageWriter is the subset of *kafka.Writer the exporter needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditExporter writes every committed event to a Kafka topic keyed by
// ticket id, so each ticket's entries stay ordered within a partition.
type AuditExporter struct {
	w       MessageWriter
	timeout time.Duration
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Transport: &kafka.Transport{
			ClientID:    "guest-requests",
			MetadataTTL: 10 * time.Second,
		},
	}
}

// NewAuditExporter wraps w.
func NewAuditExporter(w MessageWriter, timeout time.Duration) *AuditExporter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuditExporter{w: w, timeout: timeout}
}

func (e *AuditExporter) Name() string { return "kafka" }

// Deliver writes one message per appended audit entry.
func (e *AuditExporter) Deliver(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketChangedPayload)
	if !ok || len(payload.Events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(payload.Events))
	for _, ev := range payload.Events {
		value, err := json.Marshal(AuditRecord{
			LocationID: event.LocationID,
			Status:     payload.Status,
			Version:    payload.Version,
			Event:      dto.NewTicketEventResponse(ev),
		})
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.TicketID),
			Value: value,
			Time:  ev.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
			},
		})
	}
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.w.WriteMessages(cctx, msgs...)
}

// Close flushes and closes the writer.
func (e *AuditExporter) Close() error {
	return e.w.Close()
}
