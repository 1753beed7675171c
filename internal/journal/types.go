package journal

import (
	"time"

	"signal-desk/internal/order"
)

// EventType 表示执行日志事件类型。
type EventType string

const (
	EventOrderSubmitted EventType = "order_submitted"
	EventOrderFilled    EventType = "order_filled"
	EventOrderRejected  EventType = "order_rejected"
	EventError          EventType = "error"
)

// Event 封装通用日志事件。
type Event struct {
	ID        int64       `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SubmissionPayload 记录提交给网关的委托。
type SubmissionPayload struct {
	ClientOrderID string        `json:"client_order_id"`
	Gateway       string        `json:"gateway"`
	Request       order.Request `json:"request"`
}

// OutcomePayload 记录网关返回的结果，原样保存网关的错误信息。
type OutcomePayload struct {
	ClientOrderID   string  `json:"client_order_id"`
	ExchangeOrderID string  `json:"exchange_order_id,omitempty"`
	Status          string  `json:"status,omitempty"`
	FilledPrice     float64 `json:"filled_price,omitempty"`
	Error           string  `json:"error,omitempty"`
	LatencyMs       int64   `json:"latency_ms"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
