// Package desk 以显式状态机串联解析、仓位计算、图表投影与委托生成。
package desk

import (
	"signal-desk/internal/instruction"
	"signal-desk/internal/order"
	"signal-desk/internal/overlay"
	"signal-desk/internal/risk"
)

// Stage 表示交易台所处阶段。
type Stage string

const (
	StageEmpty     Stage = "empty"
	StageParsed    Stage = "parsed"
	StageSized     Stage = "sized"
	StageSubmitted Stage = "submitted"
	StageFailed    Stage = "failed"
)

// State 为不可变的交易台状态，每次事件都产生新的 State。
type State struct {
	Stage       Stage               `json:"stage"`
	Text        string              `json:"text"`
	Instruction *instruction.Parsed `json:"instruction,omitempty"`
	Risk        risk.Parameters     `json:"risk"`
	Sizing      risk.Sizing         `json:"sizing"`
	Markers     []overlay.Marker    `json:"markers"`
	Draft       *order.Request      `json:"draft,omitempty"`
	OrderID     string              `json:"order_id,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// CanSubmit 判断当前状态是否存在可提交的委托。
func (s State) CanSubmit() bool {
	return s.Stage == StageSized && s.Draft != nil
}

// Event 为驱动状态迁移的事件。
type Event interface {
	event()
}

// TextEntered 表示用户输入了新的指令文本，完全取代之前的解析结果。
type TextEntered struct {
	Text string
}

// RiskChanged 表示风险参数发生变化。
type RiskChanged struct {
	Params risk.Parameters
}

// OrderSubmitted 表示执行网关确认受理。
type OrderSubmitted struct {
	OrderID string
}

// OrderFailed 表示执行网关返回失败。
type OrderFailed struct {
	Err error
}

func (TextEntered) event()    {}
func (RiskChanged) event()    {}
func (OrderSubmitted) event() {}
func (OrderFailed) event()    {}
