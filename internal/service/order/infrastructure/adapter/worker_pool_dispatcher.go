package adapter

import (
	"context"
	"sync"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/pkg/tracing"
	"orderdesk/internal/service/order/domain/port"
)

type placementTask struct {
	ctx     context.Context
	orderID string
}

// WorkerPoolDispatcher 在进程内用有界队列 + 固定数量的 worker 执行下单。
// 队列满时立即拒绝；进程退出时队列中尚未执行的订单会保持 pending。
type WorkerPoolDispatcher struct {
	processor port.PlacementProcessor
	queue     chan placementTask
	workers   int
	metrics   *metrics.OrderMetrics

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewWorkerPoolDispatcher(processor port.PlacementProcessor, workers, queueSize int, m *metrics.OrderMetrics) *WorkerPoolDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if m == nil {
		m = metrics.NewOrderMetrics(nil)
	}
	return &WorkerPoolDispatcher{
		processor: processor,
		queue:     make(chan placementTask, queueSize),
		workers:   workers,
		metrics:   m,
	}
}

// Dispatch 把订单放入队列后立即返回。任务的 context 与请求脱离，只保留链路信息。
func (d *WorkerPoolDispatcher) Dispatch(ctx context.Context, orderID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return port.ErrDispatcherClosed
	}

	select {
	case d.queue <- placementTask{ctx: tracing.Detach(ctx), orderID: orderID}:
		d.metrics.QueueDepth.Inc()
		return nil
	default:
		return port.ErrDispatchQueueFull
	}
}

// Start 启动 worker，重复调用无效
func (d *WorkerPoolDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
	logger.L().Info().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("✅ Placement worker pool started")
}

func (d *WorkerPoolDispatcher) run(id int) {
	defer d.wg.Done()
	for task := range d.queue {
		d.metrics.QueueDepth.Dec()
		d.processor.Process(task.ctx, task.orderID)
	}
	logger.L().Debug().Int("worker", id).Msg("placement worker exited")
}

// Stop 停止接收新任务，并等待队列中已有的任务处理完，直到 ctx 结束
func (d *WorkerPoolDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.L().Info().Msg("🛑 Placement worker pool drained")
		return nil
	case <-ctx.Done():
		logger.L().Warn().Int("remaining", len(d.queue)).Msg("placement worker pool stop timed out; remaining orders stay pending")
		return ctx.Err()
	}
}
