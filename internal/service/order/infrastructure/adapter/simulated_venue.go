package adapter

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"orderdesk/internal/service/order/domain"
)

// DefaultRejectReason 是随机未成交时写入订单的原因
const DefaultRejectReason = "Failed to place order"

// VenueRule 是一条拒单规则：Expr 为 CEL 布尔表达式，命中时以 Reason 拒单。
// 可用变量: order_type, side, instrument, quantity, limit_price, has_limit_price
type VenueRule struct {
	Name   string `yaml:"name"`
	Expr   string `yaml:"expr"`
	Reason string `yaml:"reason"`
}

type SimulatedVenueOptions struct {
	Rules           []VenueRule
	FillProbability float64
	Latency         time.Duration
	// Rand 返回 [0,1) 的随机数，测试时注入确定值
	Rand func() float64
}

type compiledRule struct {
	VenueRule
	prg cel.Program
}

// SimulatedVenue 是一个本地模拟的交易场所：先按规则拒单，再按成交概率随机成交
type SimulatedVenue struct {
	rules           []compiledRule
	fillProbability float64
	latency         time.Duration
	rand            func() float64
}

// NewSimulatedVenue 编译全部规则，任意一条无法编译或不是布尔表达式都会返回错误
func NewSimulatedVenue(opts SimulatedVenueOptions) (*SimulatedVenue, error) {
	env, err := cel.NewEnv(
		cel.Variable("order_type", cel.StringType),
		cel.Variable("side", cel.StringType),
		cel.Variable("instrument", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("limit_price", cel.DoubleType),
		cel.Variable("has_limit_price", cel.BoolType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	v := &SimulatedVenue{
		fillProbability: opts.FillProbability,
		latency:         opts.Latency,
		rand:            opts.Rand,
	}
	if v.fillProbability <= 0 || v.fillProbability > 1 {
		v.fillProbability = 0.9
	}
	if v.rand == nil {
		v.rand = rand.Float64
	}

	for _, r := range opts.Rules {
		ast, iss := env.Compile(r.Expr)
		if iss.Err() != nil {
			return nil, errors.Wrapf(iss.Err(), "compile venue rule %q", r.Name)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, errors.Errorf("venue rule %q must evaluate to bool, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrapf(err, "build venue rule %q", r.Name)
		}
		if r.Reason == "" {
			r.Reason = DefaultRejectReason
		}
		v.rules = append(v.rules, compiledRule{VenueRule: r, prg: prg})
	}
	return v, nil
}

func (v *SimulatedVenue) Place(ctx context.Context, order *domain.Order) error {
	if v.latency > 0 {
		select {
		case <-time.After(v.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	facts := orderFacts(order)
	for _, r := range v.rules {
		out, _, err := r.prg.ContextEval(ctx, facts)
		if err != nil {
			return errors.Wrapf(err, "evaluate venue rule %q", r.Name)
		}
		if hit, _ := out.Value().(bool); hit {
			return &domain.PlacementError{Reason: r.Reason}
		}
	}

	if v.rand() >= v.fillProbability {
		return &domain.PlacementError{Reason: DefaultRejectReason}
	}
	return nil
}

// orderFacts 把订单转换为 CEL 规则可见的变量
func orderFacts(o *domain.Order) map[string]any {
	limitPrice := 0.0
	if o.LimitPrice.Valid {
		limitPrice = o.LimitPrice.Decimal.InexactFloat64()
	}
	return map[string]any{
		"order_type":      string(o.Type),
		"side":            string(o.Side),
		"instrument":      o.Instrument,
		"quantity":        o.Quantity,
		"limit_price":     limitPrice,
		"has_limit_price": o.LimitPrice.Valid,
	}
}
