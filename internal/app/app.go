package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"signal-desk/internal/account"
	"signal-desk/internal/chart"
	"signal-desk/internal/config"
	"signal-desk/internal/desk"
	"signal-desk/internal/exchange"
	"signal-desk/internal/execution"
	"signal-desk/internal/journal"
	"signal-desk/internal/pip"
	"signal-desk/internal/risk"
	"signal-desk/internal/store"
)

// PriceSource 提供品种当前价格。
type PriceSource interface {
	MarketPrice(ctx context.Context, symbol string) (float64, error)
}

// Option 用于替换默认构造的外部依赖。
type Option func(*App)

// WithPriceSource 指定行情来源。
func WithPriceSource(src PriceSource) Option {
	return func(a *App) { a.prices = src }
}

// WithBalanceSource 指定账户余额来源。
func WithBalanceSource(src account.Source) Option {
	return func(a *App) { a.balances = src }
}

// WithGateway 指定执行网关。
func WithGateway(gw execution.Gateway) Option {
	return func(a *App) { a.gateway = gw }
}

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store

	reducer    *desk.Reducer
	journal    *journal.Service
	hub        *chart.Hub
	gateway    execution.Gateway
	dispatcher *execution.Dispatcher
	balances   account.Source
	prices     PriceSource

	orders   *orderBook
	outcomes sync.WaitGroup
}

// New 创建 App 实例并装配各组件。gateway.simulation=false 时连接真实交易所。
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, st *store.Store, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  st,
		hub:    chart.NewHub(logger.Named("chart")),
		orders: newOrderBook(),
	}
	for _, opt := range opts {
		opt(a)
	}

	calc := risk.NewCalculator(pip.NewTable(cfg.Pips.Overrides), cfg.Risk.MaxLeverage, logger.Named("risk"))
	a.reducer = desk.NewReducer(calc)

	journalSvc, err := journal.NewService(ctx, st, logger.Named("journal"))
	if err != nil {
		return nil, fmt.Errorf("初始化执行日志失败: %w", err)
	}
	a.journal = journalSvc

	if err := a.wireExchange(); err != nil {
		return nil, err
	}

	a.dispatcher = execution.NewDispatcher(a.gateway, cfg.Gateway.SubmitTimeout, logger.Named("dispatcher"))
	return a, nil
}

func (a *App) wireExchange() error {
	needClient := a.gateway == nil && !a.cfg.Gateway.Simulation
	needClient = needClient || (a.prices == nil && !a.cfg.Gateway.Simulation)
	needClient = needClient || (a.balances == nil && a.cfg.Risk.BalanceSource == config.BalanceSourceExchange)

	var client *exchange.Client
	if needClient {
		var err error
		client, err = exchange.NewClient(a.cfg.Gateway, a.logger.Named("exchange"))
		if err != nil {
			return fmt.Errorf("初始化交易所客户端失败: %w", err)
		}
	}

	if a.gateway == nil {
		if a.cfg.Gateway.Simulation {
			a.logger.Info("执行网关处于模拟模式")
			a.gateway = execution.NewSimulator(a.logger.Named("simulator"))
		} else {
			a.gateway = execution.NewExecutor(client, a.logger.Named("executor"))
		}
	}
	if a.prices == nil && client != nil {
		a.prices = client
	}
	if a.balances == nil {
		if a.cfg.Risk.BalanceSource == config.BalanceSourceExchange {
			a.balances = account.NewExchange(client, a.logger.Named("account"))
		} else {
			a.balances = account.NewStatic(a.cfg.Risk.AccountBalance)
		}
	}
	return nil
}

// Hub 返回图表推送中心。
func (a *App) Hub() *chart.Hub {
	return a.hub
}

// Run 启动 HTTP 服务，ctx 取消后优雅退出并等待在途委托完成。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易台已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("gateway", a.gateway.Name()),
		zap.String("balance_source", a.cfg.Risk.BalanceSource),
	)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.Info("HTTP 服务已启动", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务异常: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		a.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
		}
		a.Wait()
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	a.logger.Info("系统收到退出信号，已停止")
	return nil
}

// Wait 等待全部在途委托完成并写入执行日志。
func (a *App) Wait() {
	a.dispatcher.Wait()
	a.outcomes.Wait()
}
