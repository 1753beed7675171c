// Package account 为仓位计算提供账户余额。
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

// ErrNoBalance 表示交易所未返回可用的美元权益。
var ErrNoBalance = errors.New("account: 未获取到账户权益")

// Source 返回用于风险计算的账户余额。
type Source interface {
	Balance(ctx context.Context) (float64, error)
}

// Static 使用配置中的固定余额。
type Static struct {
	amount float64
}

// NewStatic 创建固定余额来源。
func NewStatic(amount float64) *Static {
	return &Static{amount: amount}
}

// Balance 实现 Source。
func (s *Static) Balance(context.Context) (float64, error) {
	return s.amount, nil
}

type balanceClient interface {
	FetchBalance(ctx context.Context) (ccxt.Balances, error)
}

// Exchange 从交易所账户读取权益。
type Exchange struct {
	client balanceClient
	logger *zap.Logger
}

// NewExchange 创建交易所余额来源。
func NewExchange(client balanceClient, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{client: client, logger: logger}
}

// Snapshot 获取账户权益快照。
func (e *Exchange) Snapshot(ctx context.Context) (Snapshot, error) {
	balances, err := e.client.FetchBalance(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("account: 获取账户余额失败: %w", err)
	}
	return snapshotFromBalances(balances, time.Now().UTC()), nil
}

// Balance 实现 Source，返回账户总权益。
func (e *Exchange) Balance(ctx context.Context) (float64, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if snap.TotalEquity <= 0 {
		return 0, ErrNoBalance
	}

	e.logger.Debug("已刷新账户权益",
		zap.Float64("equity", snap.TotalEquity),
		zap.Float64("free", snap.FreeUSD),
	)
	return snap.TotalEquity, nil
}

var (
	_ Source = (*Static)(nil)
	_ Source = (*Exchange)(nil)
)
