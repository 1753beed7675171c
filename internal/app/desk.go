package app

import (
	"context"

	"go.uber.org/zap"

	"signal-desk/internal/desk"
	"signal-desk/internal/risk"
)

// RiskInput 为请求中可选的风险参数，缺省项使用配置或外部数据源。
type RiskInput struct {
	AccountBalance *float64 `json:"account_balance,omitempty"`
	RiskPercent    *float64 `json:"risk_percent,omitempty"`
	Leverage       *int     `json:"leverage,omitempty"`
	MarketPrice    *float64 `json:"market_price,omitempty"`
}

// Evaluate 解析指令并计算仓位、图表标记和委托草稿。
func (a *App) Evaluate(ctx context.Context, text string, in *RiskInput) desk.State {
	if in == nil {
		in = &RiskInput{}
	}

	state := a.reducer.Apply(desk.State{Risk: a.baseParams(ctx, in)}, desk.TextEntered{Text: text})
	if state.Instruction == nil || in.MarketPrice != nil {
		return state
	}

	p := state.Instruction
	if p.HasEntry() || p.Symbol == "" || a.prices == nil {
		return state
	}

	price, err := a.prices.MarketPrice(ctx, p.Symbol)
	if err != nil {
		a.logger.Warn("获取市场价格失败", zap.String("symbol", p.Symbol), zap.Error(err))
		return state
	}

	params := state.Risk
	params.MarketPrice = price
	return a.reducer.Apply(state, desk.RiskChanged{Params: params})
}

func (a *App) baseParams(ctx context.Context, in *RiskInput) risk.Parameters {
	params := risk.Parameters{
		AccountBalance: a.cfg.Risk.AccountBalance,
		RiskPercent:    a.cfg.Risk.RiskPercent,
		Leverage:       a.cfg.Risk.Leverage,
	}

	if in.AccountBalance != nil {
		params.AccountBalance = *in.AccountBalance
	} else if balance, err := a.balances.Balance(ctx); err != nil {
		a.logger.Warn("获取账户余额失败，使用配置值", zap.Error(err))
	} else {
		params.AccountBalance = balance
	}
	if in.RiskPercent != nil {
		params.RiskPercent = *in.RiskPercent
	}
	if in.Leverage != nil {
		params.Leverage = *in.Leverage
	}
	if in.MarketPrice != nil {
		params.MarketPrice = *in.MarketPrice
	}
	return params
}
