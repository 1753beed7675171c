// Package risk 根据交易指令与账户参数计算风险金额和最大仓位。
package risk

import (
	"math"
	"strconv"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"signal-desk/internal/instruction"
	"signal-desk/internal/pip"
)

// ComputeSizing 计算风险金额与最大仓位。
//
// 缺少止损或参考入场价、止损距离为零、杠杆非正时返回零仓位，这些都是保护状态而不是错误。
func ComputeSizing(p instruction.Parsed, params Parameters, pips *pip.Table) Sizing {
	pipValue := pips.Resolve(p.Symbol)
	result := Sizing{PipValue: pipValue}

	if p.StopLoss == nil {
		return zeroSizing(result, GuardMissingStop)
	}

	reference := params.MarketPrice
	if p.EntryMin != nil {
		reference = *p.EntryMin
	}
	if reference <= 0 {
		return zeroSizing(result, GuardMissingEntry)
	}
	result.ReferenceEntry = reference

	stopDistance := math.Abs(reference-*p.StopLoss) / pipValue
	result.StopDistancePips = stopDistance
	if stopDistance == 0 || math.IsNaN(stopDistance) || math.IsInf(stopDistance, 0) {
		return zeroSizing(result, GuardZeroDistance)
	}

	leverage := params.Leverage
	if leverage > MaxLeverage {
		leverage = MaxLeverage
	}
	if leverage <= 0 {
		return zeroSizing(result, GuardInvalidLeverage)
	}
	result.EffectiveLeverage = leverage

	riskAmount := params.AccountBalance * params.RiskPercent / 100
	result.RiskAmount = riskAmount
	result.MaxPositionSize = riskAmount / stopDistance * float64(leverage)
	result.RiskAmountText = Format2(result.RiskAmount)
	result.MaxPositionSizeText = Format2(result.MaxPositionSize)

	return result
}

func zeroSizing(result Sizing, guard GuardType) Sizing {
	result.Guard = guard
	result.RiskAmount = 0
	result.MaxPositionSize = 0
	result.RiskAmountText = Format2(0)
	result.MaxPositionSizeText = Format2(0)
	return result
}

// Format2 将数值按两位小数格式化，用于展示。
func Format2(v float64) string {
	d, err := decimal.NewFromFloat64(v)
	if err != nil {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return d.Rescale(2).String()
}

// Volume2 将仓位向零截断到两位小数，保证委托手数不超过展示的最大仓位。
func Volume2(v float64) float64 {
	d, err := decimal.NewFromFloat64(v)
	if err != nil {
		return math.Trunc(v*100) / 100
	}
	f, ok := d.Trunc(2).Float64()
	if !ok {
		return math.Trunc(v*100) / 100
	}
	return f
}

// Calculator 绑定 pip 表与杠杆上限，供服务层复用。
type Calculator struct {
	pips        *pip.Table
	maxLeverage int
	logger      *zap.Logger
}

// NewCalculator 创建仓位计算器。maxLeverage 只能收紧硬上限，不能放宽。
func NewCalculator(pips *pip.Table, maxLeverage int, logger *zap.Logger) *Calculator {
	if pips == nil {
		pips = pip.NewTable(nil)
	}
	if maxLeverage <= 0 || maxLeverage > MaxLeverage {
		maxLeverage = MaxLeverage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		pips:        pips,
		maxLeverage: maxLeverage,
		logger:      logger,
	}
}

// Compute 计算仓位，杠杆先按配置上限截断。
func (c *Calculator) Compute(p instruction.Parsed, params Parameters) Sizing {
	if params.Leverage > c.maxLeverage {
		params.Leverage = c.maxLeverage
	}

	sizing := ComputeSizing(p, params, c.pips)

	c.logger.Debug("仓位计算完成",
		zap.String("symbol", p.Symbol),
		zap.Float64("pip_value", sizing.PipValue),
		zap.Float64("stop_distance_pips", sizing.StopDistancePips),
		zap.Float64("risk_amount", sizing.RiskAmount),
		zap.Float64("max_position_size", sizing.MaxPositionSize),
		zap.String("guard", string(sizing.Guard)),
	)

	return sizing
}
