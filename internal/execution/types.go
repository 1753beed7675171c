package execution

import (
	"errors"
	"time"

	"signal-desk/internal/order"
)

// ErrRejected 表示委托在提交交易所之前就被拒绝（参数非法）。
var ErrRejected = errors.New("execution: 委托被拒绝")

// OrderSide 表示 ccxt 下单方向。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderRequest 为 ccxt 层面的具体委托。
type OrderRequest struct {
	Market       string
	Type         string // market | limit
	Side         OrderSide
	Amount       float64
	Price        float64
	ClientOrder  string
	Params       map[string]interface{}
	IsTrigger    bool
	TriggerPrice float64
}

// Confirmation 为网关受理委托后的回执。
type Confirmation struct {
	ClientOrderID   string    `json:"client_order_id"`
	ExchangeOrderID string    `json:"exchange_order_id,omitempty"`
	Status          string    `json:"status"`
	Price           float64   `json:"price"`
	Volume          float64   `json:"volume"`
	Simulated       bool      `json:"simulated"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Outcome 为一次异步提交的最终结果。Err 为网关返回的原始错误。
type Outcome struct {
	ClientOrderID string
	Request       order.Request
	Confirmation  Confirmation
	Err           error
	Latency       time.Duration
}
