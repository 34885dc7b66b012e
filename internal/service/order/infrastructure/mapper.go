package infrastructure

import (
	"database/sql"

	"orderdesk/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	return &domain.Order{
		ID:           model.ID,
		CreatedAt:    model.CreatedAt.UTC(),
		Type:         model.Type,
		Side:         model.Side,
		Instrument:   model.Instrument,
		LimitPrice:   model.LimitPrice,
		Quantity:     model.Quantity,
		Status:       model.Status,
		ErrorMessage: model.ErrorMessage.String,
	}
}

// FromDomainOrder 将领域模型转换为数据库模型 (用于插入)
func FromDomainOrder(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}
	return &OrderModel{
		ID:           o.ID,
		CreatedAt:    o.CreatedAt,
		Type:         o.Type,
		Side:         o.Side,
		Instrument:   o.Instrument,
		LimitPrice:   o.LimitPrice,
		Quantity:     o.Quantity,
		Status:       o.Status,
		ErrorMessage: nullString(o.ErrorMessage),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
