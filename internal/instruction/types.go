package instruction

import (
	"errors"
	"fmt"
)

// Direction 表示交易方向。
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Parsed 为一次解析得到的结构化交易指令。
//
// 缺失的价格以 nil 表示；EntryMax 仅在区间入场时存在，且与 EntryMin 保持文本中的原始顺序。
type Parsed struct {
	Symbol            string    `json:"symbol"`
	Direction         Direction `json:"direction"`
	DirectionExplicit bool      `json:"direction_explicit"`
	EntryMin          *float64  `json:"entry_min"`
	EntryMax          *float64  `json:"entry_max"`
	StopLoss          *float64  `json:"stop_loss"`
	Targets           []float64 `json:"targets"`
}

// HasEntry 判断是否解析出入场价。
func (p Parsed) HasEntry() bool { return p.EntryMin != nil }

// IsRanged 判断入场是否为区间。
func (p Parsed) IsRanged() bool { return p.EntryMin != nil && p.EntryMax != nil }

// HasPrices 判断是否包含任意价格字段。
func (p Parsed) HasPrices() bool {
	return p.EntryMin != nil || p.StopLoss != nil || len(p.Targets) > 0
}

// ErrParseFault 表示解析过程中出现内部异常。
var ErrParseFault = errors.New("instruction: parse fault")

// UserMessage 为解析失败时展示给用户的提示。
const UserMessage = "check input format"

// ParseError 封装解析内部异常，不携带任何部分结果。
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("instruction: %s", UserMessage)
	}
	return fmt.Sprintf("instruction: %s: %v", UserMessage, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Is 使 errors.Is(err, ErrParseFault) 成立。
func (e *ParseError) Is(target error) bool { return target == ErrParseFault }

func price(v float64) *float64 { return &v }
