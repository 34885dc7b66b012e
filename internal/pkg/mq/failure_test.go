package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
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

func TestFailureHandler_ForwardsWithOrigin(t *testing.T) {
	w := &captureWriter{}
	h := NewFailureHandler(w)
	original := kafka.Message{
		Topic:     "order-placement",
		Partition: 3,
		Offset:    42,
		Key:       []byte("o-1"),
		Value:     []byte("{not json"),
		Headers:   []kafka.Header{{Key: "traceparent", Value: []byte("00-abc")}},
	}

	h.Handle(context.Background(), original, errors.New("unexpected end of JSON input"))

	if len(w.msgs) != 1 {
		t.Fatalf("forwarded %d messages, want 1", len(w.msgs))
	}
	got := w.msgs[0]
	headers := KafkaHeaderCarrier(got.Headers)
	checks := map[string]string{
		HeaderOriginalTopic:     "order-placement",
		HeaderOriginalPartition: "3",
		HeaderOriginalOffset:    "42",
		HeaderExceptionMessage:  "unexpected end of JSON input",
		"traceparent":           "00-abc",
	}
	for k, want := range checks {
		if v := headers.Get(k); v != want {
			t.Errorf("header %s = %q, want %q", k, v, want)
		}
	}
	if string(got.Key) != "o-1" || string(got.Value) != "{not json" {
		t.Errorf("payload changed: key=%s value=%s", got.Key, got.Value)
	}
	if len(original.Headers) != 1 {
		t.Errorf("original headers mutated: %v", original.Headers)
	}
}

func TestFailureHandler_NoTopicOrWriteErrorDoesNotPanic(t *testing.T) {
	var nilHandler *FailureHandler
	nilHandler.Handle(context.Background(), kafka.Message{}, errors.New("boom"))

	h := NewFailureHandler(&captureWriter{err: errors.New("broker down")})
	h.Handle(context.Background(), kafka.Message{Topic: "t"}, errors.New("boom"))
}
