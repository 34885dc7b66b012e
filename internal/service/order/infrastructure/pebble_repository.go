package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"orderdesk/internal/service/order/domain"
)

// keys: o:<order id>
func orderKey(id string) []byte { return append([]byte("o:"), id...) }

// pebbleOrder 是订单在 pebble 中的 JSON 编码
type pebbleOrder struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	Type         domain.OrderType `json:"type"`
	Side         domain.Side      `json:"side"`
	Instrument   string           `json:"instrument"`
	LimitPrice   *decimal.Decimal `json:"limit_price,omitempty"`
	Quantity     int64            `json:"quantity"`
	Status       domain.Status    `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// PebbleOrderRepository 是单机嵌入式的订单存储，适合本地运行和测试。
// pebble 没有行锁，读-改-写由 mu 串行化，每次写入都是一个同步提交的 batch。
type PebbleOrderRepository struct {
	db *pebble.DB
	mu sync.Mutex
}

func NewPebbleOrderRepository(path string, opts *pebble.Options) (*PebbleOrderRepository, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", path)
	}
	return &PebbleOrderRepository{db: db}, nil
}

func (s *PebbleOrderRepository) Close() error { return s.db.Close() }

func (s *PebbleOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(order.ID); err == nil {
		return domain.ErrOrderExists
	} else if !errors.Is(err, domain.ErrOrderNotFound) {
		return err
	}
	return s.commit(toPebbleOrder(order))
}

func (s *PebbleOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (s *PebbleOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, errorMessage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(id)
	if err != nil {
		return err
	}
	if rec.Status != domain.StatusPending {
		return domain.ErrInvalidTransition
	}
	rec.Status = status
	rec.ErrorMessage = errorMessage
	return s.commit(rec)
}

func (s *PebbleOrderRepository) load(id string) (*pebbleOrder, error) {
	val, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	defer closer.Close()

	var rec pebbleOrder
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, errors.Wrapf(err, "decode order %s", id)
	}
	return &rec, nil
}

func (s *PebbleOrderRepository) commit(rec *pebbleOrder) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "encode order %s", rec.ID)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(orderKey(rec.ID), data, nil); err != nil {
		return errors.Wrapf(err, "stage order %s", rec.ID)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(err, "commit order %s", rec.ID)
	}
	return nil
}

func toPebbleOrder(o *domain.Order) *pebbleOrder {
	rec := &pebbleOrder{
		ID:           o.ID,
		CreatedAt:    o.CreatedAt,
		Type:         o.Type,
		Side:         o.Side,
		Instrument:   o.Instrument,
		Quantity:     o.Quantity,
		Status:       o.Status,
		ErrorMessage: o.ErrorMessage,
	}
	if o.LimitPrice.Valid {
		p := o.LimitPrice.Decimal
		rec.LimitPrice = &p
	}
	return rec
}

func (r *pebbleOrder) toDomain() *domain.Order {
	o := &domain.Order{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt.UTC(),
		Type:         r.Type,
		Side:         r.Side,
		Instrument:   r.Instrument,
		Quantity:     r.Quantity,
		Status:       r.Status,
		ErrorMessage: r.ErrorMessage,
	}
	if r.LimitPrice != nil {
		o.LimitPrice = decimal.NewNullDecimal(*r.LimitPrice)
	}
	return o
}

var _ domain.OrderRepository = (*PebbleOrderRepository)(nil)
