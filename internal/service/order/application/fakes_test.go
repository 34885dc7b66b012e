package application

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/trace/noop"

	"orderdesk/internal/service/order/domain"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

// memRepo 是测试用的内存订单存储，可注入写失败
type memRepo struct {
	mu         sync.Mutex
	orders     map[string]domain.Order
	createErr  error
	updateErr  error
	findErr    error
	updates    int
	panicOnGet bool
	// afterCreate 在写入成功后调用，用来模拟落库后请求被取消
	afterCreate func()
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[string]domain.Order)}
}

func (r *memRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.orders[o.ID]; ok {
		return domain.ErrOrderExists
	}
	r.orders[o.ID] = *o
	if r.afterCreate != nil {
		r.afterCreate()
	}
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panicOnGet {
		panic("storage driver exploded")
	}
	if r.findErr != nil {
		return nil, r.findErr
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, status domain.Status, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.StatusPending {
		return domain.ErrInvalidTransition
	}
	o.Status = status
	o.ErrorMessage = msg
	r.orders[id] = o
	r.updates++
	return nil
}

func (r *memRepo) get(id string) domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// venueFunc 让普通函数实现 port.Venue
type venueFunc func(ctx context.Context, o *domain.Order) error

func (f venueFunc) Place(ctx context.Context, o *domain.Order) error { return f(ctx, o) }

func succeed() venueFunc {
	return func(context.Context, *domain.Order) error { return nil }
}

func reject(reason string) venueFunc {
	return func(context.Context, *domain.Order) error { return &domain.PlacementError{Reason: reason} }
}

func crash(err error) venueFunc {
	return func(context.Context, *domain.Order) error { return err }
}

// recordingDispatcher 记录被投递的订单 id，和 kafka.Writer 一样遵守 ctx 取消
type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.ids = append(d.ids, id)
	return nil
}

// recordingPublisher 记录终态通知
type recordingPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (p *recordingPublisher) PublishTerminal(_ context.Context, o *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, *o)
	return nil
}

// stubGuard 按 err 决定是否放行
type stubGuard struct {
	err      error
	released int
}

func (g *stubGuard) Acquire(context.Context, string) (func(), error) {
	if g.err != nil {
		return nil, g.err
	}
	return func() { g.released++ }, nil
}

var errBoom = errors.New("connection reset by peer")
