// Package order 将交易指令转换为与券商无关的委托请求。
package order

import (
	"fmt"

	"signal-desk/internal/instruction"
)

// Side 表示委托方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type 表示委托类型。
type Type string

const (
	TypeMarket Type = "MARKET"
	TypeLimit  Type = "LIMIT"
	TypeStop   Type = "STOP"
)

const (
	// Deviation 为固定的滑点容忍度（points）。
	Deviation = 20
	// TimeInForceGTC 撤单前有效。
	TimeInForceGTC = "GTC"
	// FillPolicyFOK 全部成交否则撤销。
	FillPolicyFOK = "FOK"
)

// Request 为提交给执行网关的委托请求，创建后不再修改。
type Request struct {
	Symbol      string   `json:"symbol"`
	Side        Side     `json:"side"`
	Type        Type     `json:"type"`
	Volume      float64  `json:"volume"`
	Price       float64  `json:"price"`
	StopLoss    *float64 `json:"stop_loss"`
	TakeProfit  *float64 `json:"take_profit"`
	Comment     string   `json:"comment"`
	TimeInForce string   `json:"time_in_force"`
	FillPolicy  string   `json:"fill_policy"`
	Deviation   int      `json:"deviation"`
}

// Format 根据指令与仓位生成委托请求。
//
// 区间入场为 LIMIT，否则为 STOP；只携带第一个目标价作为止盈，其余目标价数量写入备注。
func Format(p instruction.Parsed, volume, currentPrice float64) Request {
	req := Request{
		Symbol:      p.Symbol,
		Side:        sideOf(p.Direction),
		Type:        TypeStop,
		Volume:      volume,
		Price:       currentPrice,
		Comment:     fmt.Sprintf("Auto order with %d TP levels", len(p.Targets)),
		TimeInForce: TimeInForceGTC,
		FillPolicy:  FillPolicyFOK,
		Deviation:   Deviation,
	}

	if p.EntryMax != nil {
		req.Type = TypeLimit
	}
	if p.EntryMin != nil {
		req.Price = *p.EntryMin
	}
	if p.StopLoss != nil {
		sl := *p.StopLoss
		req.StopLoss = &sl
	}
	if len(p.Targets) > 0 {
		tp := p.Targets[0]
		req.TakeProfit = &tp
	}

	return req
}

func sideOf(d instruction.Direction) Side {
	if d == instruction.DirectionBuy {
		return SideBuy
	}
	return SideSell
}
