package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"signal-desk/internal/exchange"
	"signal-desk/internal/order"
)

// Executor 通过 ccxt 将委托请求提交到交易所。
type Executor struct {
	venue  *exchange.Client
	logger *zap.Logger
}

// NewExecutor 创建执行器。
func NewExecutor(venue *exchange.Client, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		venue:  venue,
		logger: logger,
	}
}

// Name 返回网关名称。
func (e *Executor) Name() string {
	return e.venue.Name()
}

// SubmitOrder 将委托映射为 ccxt 下单，可重试错误经 Retrier 退避重试。
func (e *Executor) SubmitOrder(ctx context.Context, clientOrderID string, req order.Request) (Confirmation, error) {
	ccxtOrder, err := buildOrderRequest(req, e.venue.Market(req.Symbol), exchangeClientID(e.venue.Name(), clientOrderID))
	if err != nil {
		return Confirmation{}, err
	}

	if err := e.venue.EnsureMarkets(ctx); err != nil {
		return Confirmation{}, fmt.Errorf("execution: 加载市场失败: %w", err)
	}

	var placed ccxt.Order
	err = e.venue.Retrier().Do(ctx, "create_order", func() error {
		result, submitErr := e.submit(ccxtOrder)
		if submitErr != nil {
			return submitErr
		}
		placed = result
		return nil
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("execution: 下单失败: %w", err)
	}

	conf := Confirmation{
		ClientOrderID:   clientOrderID,
		ExchangeOrderID: derefString(placed.Id),
		Status:          derefString(placed.Status),
		Price:           firstPositive(derefFloat(placed.Average), derefFloat(placed.Price), req.Price),
		Volume:          req.Volume,
		SubmittedAt:     time.Now().UTC(),
	}
	if conf.Status == "" {
		conf.Status = "open"
	}

	e.logger.Info("委托已提交",
		zap.String("client_order_id", clientOrderID),
		zap.String("exchange_order_id", conf.ExchangeOrderID),
		zap.String("market", ccxtOrder.Market),
		zap.String("type", ccxtOrder.Type),
		zap.String("side", string(ccxtOrder.Side)),
		zap.Float64("amount", ccxtOrder.Amount),
	)
	return conf, nil
}

func (e *Executor) submit(o OrderRequest) (ccxt.Order, error) {
	api := e.venue.API()
	switch o.Type {
	case "market":
		var opts []ccxt.CreateMarketOrderOptions
		if len(o.Params) > 0 {
			opts = append(opts, ccxt.WithCreateMarketOrderParams(o.Params))
		}
		return api.CreateMarketOrder(o.Market, string(o.Side), o.Amount, opts...)
	case "limit":
		var opts []ccxt.CreateLimitOrderOptions
		if len(o.Params) > 0 {
			opts = append(opts, ccxt.WithCreateLimitOrderParams(o.Params))
		}
		return api.CreateLimitOrder(o.Market, string(o.Side), o.Amount, o.Price, opts...)
	default:
		return ccxt.Order{}, fmt.Errorf("%w: 不支持的订单类型 %s", ErrRejected, o.Type)
	}
}

// buildOrderRequest 将委托请求映射为 ccxt 委托。
// LIMIT 为限价单，只携带 TimeInForce；STOP 为带 triggerPrice 的市价触发单；MARKET 为市价单。
func buildOrderRequest(req order.Request, market, clientOrderID string) (OrderRequest, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return OrderRequest{}, fmt.Errorf("%w: 缺少交易品种", ErrRejected)
	}
	if req.Volume <= 0 {
		return OrderRequest{}, fmt.Errorf("%w: 下单手数无效 volume=%.6f", ErrRejected, req.Volume)
	}

	side := OrderSideSell
	if req.Side == order.SideBuy {
		side = OrderSideBuy
	}

	params := map[string]interface{}{}
	if clientOrderID != "" {
		params["clientOrderId"] = clientOrderID
	}
	if req.StopLoss != nil {
		params["stopLossPrice"] = *req.StopLoss
	}
	if req.TakeProfit != nil {
		params["takeProfitPrice"] = *req.TakeProfit
	}

	o := OrderRequest{
		Market:      market,
		Side:        side,
		Amount:      req.Volume,
		Price:       req.Price,
		ClientOrder: clientOrderID,
		Params:      params,
	}

	switch req.Type {
	case order.TypeLimit:
		if req.Price <= 0 {
			return OrderRequest{}, fmt.Errorf("%w: 限价单价格无效", ErrRejected)
		}
		o.Type = "limit"
		if req.TimeInForce != "" {
			params["timeInForce"] = strings.ToLower(req.TimeInForce)
		}
	case order.TypeStop:
		if req.Price <= 0 {
			return OrderRequest{}, fmt.Errorf("%w: 触发价格无效", ErrRejected)
		}
		o.Type = "market"
		o.IsTrigger = true
		o.TriggerPrice = req.Price
		params["triggerPrice"] = req.Price
		applyMarketExecution(params, req)
	case order.TypeMarket:
		o.Type = "market"
		applyMarketExecution(params, req)
	default:
		return OrderRequest{}, fmt.Errorf("%w: 不支持的委托类型 %s", ErrRejected, req.Type)
	}

	return o, nil
}

// applyMarketExecution 为市价成交的委托写入成交策略与滑点。
// FillPolicy 映射为 timeInForce；Deviation 以 1 point = 0.01% 换算为滑点比例。
func applyMarketExecution(params map[string]interface{}, req order.Request) {
	if req.FillPolicy != "" {
		params["timeInForce"] = strings.ToLower(req.FillPolicy)
	} else if req.TimeInForce != "" {
		params["timeInForce"] = strings.ToLower(req.TimeInForce)
	}
	if req.Deviation > 0 {
		params["slippage"] = formatSlippage(float64(req.Deviation) / 10000)
	}
}

func formatSlippage(value float64) string {
	return fmt.Sprintf("%.6f", value)
}

// exchangeClientID 按交易所要求转换客户端委托号，hyperliquid 需要 0x 开头的 128 位十六进制。
func exchangeClientID(venue, clientOrderID string) string {
	if clientOrderID == "" {
		return ""
	}
	if strings.EqualFold(venue, "hyperliquid") {
		return "0x" + strings.ReplaceAll(clientOrderID, "-", "")
	}
	return clientOrderID
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
