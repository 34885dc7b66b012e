// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "pending"   // 已落库，等待异步下单
	StatusCompleted Status = "completed" // 交易场所确认下单成功
	StatusFailed    Status = "failed"    // 交易场所明确拒绝（业务原因）
	StatusError     Status = "error"     // 下单过程中出现未预期的错误
)

// IsTerminal 终态之后不允许再有任何状态流转
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusError
}

func (s Status) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// OrderType 订单类型
type OrderType string

const (
	TypeMarket OrderType = "market"
	TypeLimit  OrderType = "limit"
)

func (t OrderType) Valid() bool {
	return t == TypeMarket || t == TypeLimit
}

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}
