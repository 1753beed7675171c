package desk

import (
	"strings"

	"signal-desk/internal/instruction"
	"signal-desk/internal/order"
	"signal-desk/internal/overlay"
	"signal-desk/internal/risk"
)

// Reducer 持有计算依赖，本身无可变状态。
type Reducer struct {
	calc *risk.Calculator
}

// NewReducer 创建状态机。
func NewReducer(calc *risk.Calculator) *Reducer {
	if calc == nil {
		calc = risk.NewCalculator(nil, 0, nil)
	}
	return &Reducer{calc: calc}
}

// Apply 根据事件计算下一状态，不修改传入的 s。
func (r *Reducer) Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case TextEntered:
		return r.enterText(s.Risk, e.Text)
	case RiskChanged:
		next := s
		next.Risk = e.Params
		if next.Instruction == nil {
			return next
		}
		return r.derive(next)
	case OrderSubmitted:
		if !s.CanSubmit() {
			return s
		}
		next := s
		next.Stage = StageSubmitted
		next.OrderID = e.OrderID
		next.Error = ""
		return next
	case OrderFailed:
		if s.Stage != StageSized && s.Stage != StageSubmitted {
			return s
		}
		next := s
		next.Stage = StageFailed
		next.OrderID = ""
		if e.Err != nil {
			next.Error = e.Err.Error()
		}
		return next
	default:
		return s
	}
}

func (r *Reducer) enterText(params risk.Parameters, text string) State {
	next := State{Stage: StageEmpty, Text: text, Risk: params, Markers: []overlay.Marker{}}
	if strings.TrimSpace(text) == "" {
		return next
	}

	parsed, err := instruction.Parse(text)
	if err != nil {
		next.Stage = StageFailed
		next.Error = instruction.UserMessage
		return next
	}

	next.Instruction = &parsed
	return r.derive(next)
}

// derive 基于当前指令和风险参数重新计算全部派生数据。
func (r *Reducer) derive(s State) State {
	p := *s.Instruction

	s.Sizing = r.calc.Compute(p, s.Risk)
	s.Markers = overlay.Project(p)
	s.OrderID = ""
	s.Error = ""

	if s.Sizing.IsZero() {
		s.Stage = StageParsed
		s.Draft = nil
		return s
	}

	draft := order.Format(p, risk.Volume2(s.Sizing.MaxPositionSize), s.Risk.MarketPrice)
	s.Draft = &draft
	s.Stage = StageSized
	return s
}
