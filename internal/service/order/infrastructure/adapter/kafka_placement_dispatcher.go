package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"orderdesk/internal/pkg/mq"
	"orderdesk/internal/pkg/tracing"
	"orderdesk/internal/service/order/domain"
)

// KafkaPlacementDispatcher 把下单任务作为事件发布到 Kafka，由 PlacementConsumerAdapter 消费。
// 消息以订单 id 为 key，同一订单总是落在同一个分区。
type KafkaPlacementDispatcher struct {
	writer mq.MessageWriter
}

func NewKafkaPlacementDispatcher(writer mq.MessageWriter) *KafkaPlacementDispatcher {
	return &KafkaPlacementDispatcher{writer: writer}
}

func (d *KafkaPlacementDispatcher) Dispatch(ctx context.Context, orderID string) error {
	event := domain.OrderPlacementRequested{
		OrderID:     orderID,
		TraceID:     tracing.GetTraceIDFromContext(ctx),
		RequestedAt: time.Now().UTC(),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal placement event")
	}

	if err := mq.ProduceMessage(ctx, d.writer, []byte(orderID), eventBytes); err != nil {
		return errors.Wrap(err, "produce placement event")
	}
	return nil
}
