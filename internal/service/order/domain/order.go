// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InstrumentLength = 12
	PriceScale       = 2
)

// maxLimitPrice 对应存储层 DECIMAL(10,2) 的上界
var maxLimitPrice = decimal.New(1, 8)

// Order 是订单聚合的根实体
type Order struct {
	ID           string
	CreatedAt    time.Time
	Type         OrderType
	Side         Side
	Instrument   string
	LimitPrice   decimal.NullDecimal
	Quantity     int64
	Status       Status
	ErrorMessage string
}

// OrderSpec 是创建订单所需的原始字段，尚未校验
type OrderSpec struct {
	Type       string
	Side       string
	Instrument string
	LimitPrice *decimal.Decimal
	Quantity   int64
}

// Validate 检查受理规则，返回第一个违反的规则
func (s OrderSpec) Validate() error {
	if !OrderType(s.Type).Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("type must be one of %q, %q", TypeMarket, TypeLimit)}
	}
	if !Side(s.Side).Valid() {
		return &ValidationError{Field: "side", Message: fmt.Sprintf("side must be one of %q, %q", SideBuy, SideSell)}
	}
	if len([]rune(s.Instrument)) != InstrumentLength {
		return &ValidationError{Field: "instrument", Message: fmt.Sprintf("instrument must be exactly %d characters", InstrumentLength)}
	}
	if s.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "quantity must be greater than 0"}
	}

	switch OrderType(s.Type) {
	case TypeMarket:
		if s.LimitPrice != nil {
			return &ValidationError{Field: "limit_price", Message: "Market orders cannot have limit_price"}
		}
	case TypeLimit:
		if s.LimitPrice == nil {
			return &ValidationError{Field: "limit_price", Message: "Limit orders require limit_price"}
		}
		return validateLimitPrice(*s.LimitPrice)
	}
	return nil
}

func validateLimitPrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return &ValidationError{Field: "limit_price", Message: "limit_price must be greater than 0"}
	}
	if !p.Equal(p.Truncate(PriceScale)) {
		return &ValidationError{Field: "limit_price", Message: "limit_price must have at most 2 decimal places"}
	}
	if p.GreaterThanOrEqual(maxLimitPrice) {
		return &ValidationError{Field: "limit_price", Message: "limit_price must be less than 100000000"}
	}
	return nil
}

// 工厂函数: NewOrder 校验 spec 并创建一个 pending 状态的订单
func NewOrder(id string, createdAt time.Time, spec OrderSpec) (*Order, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	o := &Order{
		ID:         id,
		CreatedAt:  createdAt.UTC(),
		Type:       OrderType(spec.Type),
		Side:       Side(spec.Side),
		Instrument: spec.Instrument,
		Quantity:   spec.Quantity,
		Status:     StatusPending,
	}
	if spec.LimitPrice != nil {
		o.LimitPrice = decimal.NewNullDecimal(spec.LimitPrice.Round(PriceScale))
	}
	return o, nil
}

// Complete 交易场所确认成功
func (o *Order) Complete() error {
	return o.settle(StatusCompleted, "")
}

// Fail 交易场所明确拒绝，reason 会写入订单记录
func (o *Order) Fail(reason string) error {
	return o.settle(StatusFailed, reason)
}

// MarkAsError 未预期的错误，记录里只保留通用信息
func (o *Order) MarkAsError() error {
	return o.settle(StatusError, InternalErrorMessage)
}

// 只有 pending 可以流转，且只能流转一次
func (o *Order) settle(to Status, message string) error {
	if o.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.ErrorMessage = message
	return nil
}

// Clone 返回订单的副本，交给外部协作方时使用，避免其修改引擎持有的状态
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
