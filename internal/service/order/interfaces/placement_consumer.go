package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/mq"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"
)

const commitTimeout = 5 * time.Second

// PlacementConsumerAdapter 是一个驱动适配器，它监听下单事件并驱动生命周期引擎。
// Offset 在处理完成后才提交：进程崩溃会导致重复投递，由引擎的状态检查保证幂等。
type PlacementConsumerAdapter struct {
	reader         mq.MessageReader
	processor      port.PlacementProcessor
	failureHandler *mq.FailureHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPlacementConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewPlacementConsumerAdapter(reader mq.MessageReader, processor port.PlacementProcessor, failureHandler *mq.FailureHandler) *PlacementConsumerAdapter {
	return &PlacementConsumerAdapter{
		reader:         reader,
		processor:      processor,
		failureHandler: failureHandler,
	}
}

// Start 开始监听Kafka主题，立即返回
func (a *PlacementConsumerAdapter) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Msg("✅ Placement consumer started")
		for {
			// 使用FetchMessage而不是ReadMessage，以便手动提交
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("🛑 Placement consumer shutting down.")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not read message, retrying")
				// 避免快速失败循环
				if !waitRetry(ctx, time.Second) {
					return
				}
				continue
			}

			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			// 已取出的消息要完整处理完，不随关停取消
			msgCtx := context.WithoutCancel(otel.GetTextMapPropagator().Extract(ctx, &headerCarrier))

			if err := a.processMessage(msgCtx, msg); err != nil {
				a.failureHandler.Handle(msgCtx, msg, err)
			}

			commitCtx, cancel := context.WithTimeout(msgCtx, commitTimeout)
			if err := a.reader.CommitMessages(commitCtx, msg); err != nil {
				logger.Ctx(msgCtx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit messages")
			}
			cancel()
		}
	}()
	return nil
}

// Stop 优雅地停止消费者，等待正在处理的消息完成
func (a *PlacementConsumerAdapter) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if err := a.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to close placement reader")
	}
	logger.Ctx(ctx).Info().Msg("✅ Placement consumer stopped.")
}

// processMessage 反序列化消息并交给引擎。只有无法解析的消息才返回错误。
func (a *PlacementConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.OrderPlacementRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal placement event")
	}
	if event.OrderID == "" {
		return errors.New("placement event without order id")
	}

	a.processor.Process(ctx, event.OrderID)
	return nil
}
