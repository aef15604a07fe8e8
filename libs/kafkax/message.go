package kafkax

import (
	"context"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// NewMessage builds a keyed message with event_id, event_type and trace headers.
// Extra headers (for example correlation_id) are appended when non-empty.
func NewMessage(ctx context.Context, key, eventType string, payload []byte, extra map[string]string) kafka.Message {
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(uuid.NewString())},
		{Key: "event_type", Value: []byte(eventType)},
	}
	for k, v := range extra {
		if v != "" {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}
	return kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: InjectTraceHeaders(ctx, headers),
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
