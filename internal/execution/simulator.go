package execution

import (
	"context"
	"time"

	"go.uber.org/zap"

	"signal-desk/internal/order"
)

// Simulator 为演示模式网关：校验委托后立即按请求价格成交，不访问交易所。
type Simulator struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSimulator 创建模拟网关。
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Name 返回网关名称。
func (s *Simulator) Name() string {
	return "simulator"
}

// SubmitOrder 实现 Gateway。
func (s *Simulator) SubmitOrder(ctx context.Context, clientOrderID string, req order.Request) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	if _, err := buildOrderRequest(req, req.Symbol, clientOrderID); err != nil {
		return Confirmation{}, err
	}

	conf := Confirmation{
		ClientOrderID:   clientOrderID,
		ExchangeOrderID: "sim-" + clientOrderID,
		Status:          "filled",
		Price:           req.Price,
		Volume:          req.Volume,
		Simulated:       true,
		SubmittedAt:     s.now(),
	}

	s.logger.Info("模拟成交",
		zap.String("client_order_id", clientOrderID),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.Type)),
		zap.Float64("volume", req.Volume),
		zap.Float64("price", req.Price),
	)
	return conf, nil
}
