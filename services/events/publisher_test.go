package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestPublishKeysByBooking(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), Event{Type: TypeBookingConfirmed, BookingID: "B1", IntegrityLevel: "verified", OccurredAt: at}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "B1", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, TypeBookingConfirmed, got.Type)
	assert.Equal(t, "verified", got.IntegrityLevel)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, TypeBookingConfirmed, headers[HeaderEventType])
	assert.NotEmpty(t, headers[HeaderEventID])
}

func TestPublishErrors(t *testing.T) {
	w := &captureWriter{err: errors.New("leader not available")}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	assert.Error(t, p.Publish(context.Background(), Event{Type: TypeBookingConfirmed}))
	assert.ErrorContains(t, p.Publish(context.Background(), Event{Type: TypeBookingConfirmed, BookingID: "B1"}), "leader not available")
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic", zap.NewNop())
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", zap.NewNop())
	assert.Error(t, err)
}
