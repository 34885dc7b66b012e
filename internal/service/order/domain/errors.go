// internal/service/order/domain/errors.go
package domain

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderExists       = errors.New("order already exists")
	ErrInvalidTransition = errors.New("order is not pending")
)

// InternalErrorMessage 是写入订单记录的通用错误信息，原始错误只出现在日志里
const InternalErrorMessage = "Internal processing error"

// ValidationError 表示调用方提交的订单违反了受理规则，直接返回给调用方，不重试
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PlacementError 表示交易场所出于已知业务原因拒绝了订单（拒单、流动性不足、超时等）
type PlacementError struct {
	Reason string
}

func (e *PlacementError) Error() string {
	return e.Reason
}
