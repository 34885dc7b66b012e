package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"orderdesk/internal/service/order/domain"
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

func TestKafkaPlacementDispatcher_PublishesKeyedEvent(t *testing.T) {
	w := &captureWriter{}
	d := NewKafkaPlacementDispatcher(w)

	if err := d.Dispatch(context.Background(), "o-42"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "o-42" {
		t.Errorf("key = %s, want o-42", msg.Key)
	}
	var event domain.OrderPlacementRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.OrderID != "o-42" || event.RequestedAt.IsZero() {
		t.Errorf("event = %+v", event)
	}
}

func TestKafkaPlacementDispatcher_BrokerFailure(t *testing.T) {
	brokerErr := errors.New("kafka: leader not available")
	d := NewKafkaPlacementDispatcher(&captureWriter{err: brokerErr})

	if err := d.Dispatch(context.Background(), "o-1"); !errors.Is(err, brokerErr) {
		t.Fatalf("err = %v, want wrapped broker error", err)
	}
}
