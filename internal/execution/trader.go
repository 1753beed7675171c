package execution

import (
	"context"

	"github.com/google/uuid"

	"signal-desk/internal/order"
)

// Gateway 抽象执行网关，方便切换真实或模拟下单。
type Gateway interface {
	Name() string
	SubmitOrder(ctx context.Context, clientOrderID string, req order.Request) (Confirmation, error)
}

var (
	_ Gateway = (*Executor)(nil)
	_ Gateway = (*Simulator)(nil)
)

// NewClientOrderID 生成按时间有序的客户端委托号。
func NewClientOrderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
