package risk

// MaxLeverage 为杠杆的硬上限，与用户输入无关。
const MaxLeverage = 1500

// Parameters 为仓位计算所需的外部输入。
type Parameters struct {
	AccountBalance float64 `json:"account_balance"`
	RiskPercent    float64 `json:"risk_percent"`
	Leverage       int     `json:"leverage"`
	MarketPrice    float64 `json:"market_price"` // 当前市价，0 表示不可用
}

// GuardType 描述仓位归零的原因。
type GuardType string

const (
	GuardNone            GuardType = ""
	GuardMissingStop     GuardType = "missing_stop_loss"
	GuardMissingEntry    GuardType = "missing_reference_entry"
	GuardZeroDistance    GuardType = "zero_risk_distance"
	GuardInvalidLeverage GuardType = "invalid_leverage"
)

// Sizing 为仓位计算结果。
//
// RiskAmount 与 MaxPositionSize 保留完整精度，*Text 字段为保留两位小数的展示值。
type Sizing struct {
	RiskAmount          float64   `json:"risk_amount"`
	MaxPositionSize     float64   `json:"max_position_size"`
	RiskAmountText      string    `json:"risk_amount_text"`
	MaxPositionSizeText string    `json:"max_position_size_text"`
	PipValue            float64   `json:"pip_value"`
	ReferenceEntry      float64   `json:"reference_entry"`
	StopDistancePips    float64   `json:"stop_distance_pips"`
	EffectiveLeverage   int       `json:"effective_leverage"`
	Guard               GuardType `json:"guard,omitempty"`
}

// IsZero 判断结果是否处于归零保护状态。
func (s Sizing) IsZero() bool {
	return s.Guard != GuardNone || s.MaxPositionSize == 0
}
