package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-desk/internal/order"
)

const defaultSubmitTimeout = 30 * time.Second

// Dispatcher 异步提交委托，调用方通过返回的通道获取结果。
type Dispatcher struct {
	gateway Gateway
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher 创建异步提交器。
func NewDispatcher(gateway Gateway, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &Dispatcher{
		gateway: gateway,
		timeout: timeout,
		logger:  logger,
	}
}

// Gateway 返回当前使用的网关。
func (d *Dispatcher) Gateway() Gateway {
	return d.gateway
}

// Submit 立即返回客户端委托号与结果通道；通道恰好收到一个 Outcome 后关闭。
func (d *Dispatcher) Submit(ctx context.Context, req order.Request) (string, <-chan Outcome) {
	clientOrderID := NewClientOrderID()
	out := make(chan Outcome, 1)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(out)
		out <- d.submit(ctx, clientOrderID, req)
	}()

	return clientOrderID, out
}

func (d *Dispatcher) submit(ctx context.Context, clientOrderID string, req order.Request) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{ClientOrderID: clientOrderID, Request: req}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("execution: 网关异常: %v", r)
		}
		outcome.Latency = time.Since(start)
		if outcome.Err != nil {
			d.logger.Warn("委托提交失败",
				zap.String("gateway", d.gateway.Name()),
				zap.String("client_order_id", clientOrderID),
				zap.Error(outcome.Err),
			)
		}
	}()

	submitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outcome.Confirmation, outcome.Err = d.gateway.SubmitOrder(submitCtx, clientOrderID, req)
	return outcome
}

// Wait 阻塞直到所有在途提交完成。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
