package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"orderdesk/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db, tracer: otel.Tracer("order-store.gorm")}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "store.Create", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	err := r.db.WithContext(ctx).Create(FromDomainOrder(order)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrOrderExists
	}
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "insert order %s", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "store.FindByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		span.RecordError(err)
		return nil, errors.Wrapf(err, "query order %s", id)
	}
	return ToDomainOrder(&model), nil
}

// UpdateStatus 在一个事务里做条件更新：只有仍是 pending 的行才会被改写
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, errorMessage string) error {
	ctx, span := r.tracer.Start(ctx, "store.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updateData := map[string]interface{}{
			"status":        status,
			"error_message": nullString(errorMessage),
		}
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", id, domain.StatusPending).
			Updates(updateData)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var count int64
		if err := tx.Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrOrderNotFound
		}
		return domain.ErrInvalidTransition
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInvalidTransition):
		return err
	default:
		span.RecordError(err)
		return errors.Wrapf(err, "commit status %s for order %s", status, id)
	}
}

var _ domain.OrderRepository = (*GormOrderRepository)(nil)
