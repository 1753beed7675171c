// Package exchange 封装 ccxt 交易所客户端：行情、余额查询与下单通道。
package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"signal-desk/internal/config"
)

const defaultBookDepth = 5

// API 为本系统用到的 ccxt 方法集合，*ccxt.Binanceusdm 与 *ccxt.Hyperliquid 均满足。
type API interface {
	FetchOrderBook(symbol string, options ...ccxt.FetchOrderBookOptions) (ccxt.OrderBook, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
}

// Client 负责与交易所交互，所有调用经过限速与重试。
type Client struct {
	cfg         config.GatewayConfig
	api         API
	loadMarkets func() error
	retrier     *Retrier
	logger      *zap.Logger

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 按 gateway.name 构造 binanceusdm 或 hyperliquid 客户端。
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) (*Client, error) {
	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}

	switch strings.ToLower(cfg.Name) {
	case "binanceusdm":
		userConfig["options"] = map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		}
		ex := ccxt.NewBinanceusdm(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return NewClientWithAPI(cfg, ex, func() error {
			_, err := ex.LoadMarkets()
			return err
		}, logger), nil
	case "hyperliquid":
		if cfg.Wallet != "" {
			userConfig["walletAddress"] = cfg.Wallet
		}
		if cfg.PrivateKey != "" {
			userConfig["privateKey"] = cfg.PrivateKey
		}
		ex := ccxt.NewHyperliquid(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return NewClientWithAPI(cfg, ex, func() error {
			_, err := ex.LoadMarkets()
			return err
		}, logger), nil
	default:
		return nil, fmt.Errorf("exchange: 不支持的交易所 %q", cfg.Name)
	}
}

// NewClientWithAPI 使用已构造好的 ccxt 客户端，loadMarkets 可为空。
func NewClientWithAPI(cfg config.GatewayConfig, api API, loadMarkets func() error, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("exchange", strings.ToLower(cfg.Name)))

	return &Client{
		cfg:         cfg,
		api:         api,
		loadMarkets: loadMarkets,
		retrier:     NewRetrier(cfg.Retry, cfg.RequestsPerSecond, logger),
		logger:      logger,
	}
}

// Name 返回交易所名称。
func (c *Client) Name() string {
	return strings.ToLower(c.cfg.Name)
}

// API 返回底层 ccxt 客户端。
func (c *Client) API() API {
	return c.api
}

// Retrier 返回客户端共享的限速重试器。
func (c *Client) Retrier() *Retrier {
	return c.retrier
}

// Market 将指令品种映射为交易所市场代码。
func (c *Client) Market(symbol string) string {
	return c.cfg.MarketFor(symbol)
}

// EnsureMarkets 在首次下单或查询前加载市场元数据。
func (c *Client) EnsureMarkets(ctx context.Context) error {
	if c.loadMarkets == nil {
		return nil
	}

	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	if err := c.retrier.Do(ctx, "load_markets", c.loadMarkets); err != nil {
		return err
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载")
	return nil
}

// FetchOrderBook 获取指令品种的订单簿快照。
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int64) (OrderBookSnapshot, error) {
	if depth <= 0 {
		depth = defaultBookDepth
	}
	if err := c.EnsureMarkets(ctx); err != nil {
		return OrderBookSnapshot{}, err
	}

	market := c.Market(symbol)

	var raw ccxt.OrderBook
	err := c.retrier.Do(ctx, "fetch_order_book", func() error {
		orderBook, err := c.api.FetchOrderBook(market, ccxt.WithFetchOrderBookLimit(depth))
		if err != nil {
			return err
		}
		raw = orderBook
		return nil
	})
	if err != nil {
		return OrderBookSnapshot{}, err
	}

	return convertOrderBook(market, raw), nil
}

// MarketPrice 以盘口中间价作为品种当前价格。
func (c *Client) MarketPrice(ctx context.Context, symbol string) (float64, error) {
	book, err := c.FetchOrderBook(ctx, symbol, defaultBookDepth)
	if err != nil {
		return 0, fmt.Errorf("exchange: 获取 %s 价格失败: %w", symbol, err)
	}

	mid := book.Mid()
	if mid <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoQuote, book.Symbol)
	}
	return mid, nil
}

// FetchBalance 查询账户余额。
func (c *Client) FetchBalance(ctx context.Context) (ccxt.Balances, error) {
	var balances ccxt.Balances
	err := c.retrier.Do(ctx, "fetch_balance", func() error {
		result, err := c.api.FetchBalance()
		if err != nil {
			return err
		}
		balances = result
		return nil
	})
	return balances, err
}

func convertOrderBook(symbol string, ob ccxt.OrderBook) OrderBookSnapshot {
	bids := make([]OrderBookLevel, 0, len(ob.Bids))
	for _, level := range ob.Bids {
		if len(level) < 2 {
			continue
		}
		bids = append(bids, OrderBookLevel{
			Price:  level[0],
			Amount: level[1],
		})
	}

	asks := make([]OrderBookLevel, 0, len(ob.Asks))
	for _, level := range ob.Asks {
		if len(level) < 2 {
			continue
		}
		asks = append(asks, OrderBookLevel{
			Price:  level[0],
			Amount: level[1],
		})
	}

	var ts time.Time
	if ob.Timestamp != nil {
		ts = time.UnixMilli(*ob.Timestamp).UTC()
	} else {
		ts = time.Now().UTC()
	}

	var nonce int64
	if ob.Nonce != nil {
		nonce = *ob.Nonce
	}

	return OrderBookSnapshot{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
		Nonce:     nonce,
	}
}
