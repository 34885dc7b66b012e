package mq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderdesk/internal/pkg/logger"
)

// 死信消息携带的原始位置与失败原因
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
)

// MessageWriter 是 *kafka.Writer 的最小子集
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// FailureHandler 把无法处理的消息转发到死信主题，避免阻塞分区
type FailureHandler struct {
	dlt MessageWriter
}

func NewFailureHandler(dlt MessageWriter) *FailureHandler {
	return &FailureHandler{dlt: dlt}
}

// Handle 转发失败消息；转发本身失败时只记录日志，消息随后仍会被提交
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	log := logger.Ctx(ctx).With().
		Str("topic", msg.Topic).Int("partition", msg.Partition).Int64("offset", msg.Offset).Logger()

	if h == nil || h.dlt == nil {
		log.Error().Err(cause).Msg("message processing failed and no dead letter topic is configured, dropping")
		return
	}

	headers := KafkaHeaderCarrier(append([]kafka.Header{}, msg.Headers...))
	headers.Set(HeaderOriginalTopic, msg.Topic)
	headers.Set(HeaderOriginalPartition, strconv.Itoa(msg.Partition))
	headers.Set(HeaderOriginalOffset, strconv.FormatInt(msg.Offset, 10))
	headers.Set(HeaderExceptionFqcn, fmt.Sprintf("%T", errors.Cause(cause)))
	headers.Set(HeaderExceptionMessage, cause.Error())

	err := h.dlt.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("CRITICAL: failed to forward message to dead letter topic")
		return
	}
	log.Warn().Err(cause).Msg("message forwarded to dead letter topic")
}
