package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"orderdesk/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID           string              `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt    time.Time           `gorm:"not null;index"`
	Type         domain.OrderType    `gorm:"type:varchar(8);not null"`
	Side         domain.Side         `gorm:"type:varchar(4);not null"`
	Instrument   string              `gorm:"type:char(12);not null"`
	LimitPrice   decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	Quantity     int64               `gorm:"not null"`
	Status       domain.Status       `gorm:"type:varchar(16);not null;default:pending;index"`
	ErrorMessage sql.NullString      `gorm:"type:text"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}
