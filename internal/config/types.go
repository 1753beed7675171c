package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Pips     PipConfig      `mapstructure:"pips"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ServerConfig 控制 HTTP 服务。
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RiskConfig 为仓位计算提供默认的风险参数。
type RiskConfig struct {
	AccountBalance float64 `mapstructure:"account_balance"`
	RiskPercent    float64 `mapstructure:"risk_percent"`
	Leverage       int     `mapstructure:"leverage"`
	MaxLeverage    int     `mapstructure:"max_leverage"`
	BalanceSource  string  `mapstructure:"balance_source"` // static | exchange
}

// PipConfig 覆盖或补充内置的 pip 表。
type PipConfig struct {
	Overrides map[string]float64 `mapstructure:"overrides"`
}

// GatewayConfig 描述执行网关与交易所连接信息。
type GatewayConfig struct {
	Name              string            `mapstructure:"name"`
	Simulation        bool              `mapstructure:"simulation"`
	APIKey            string            `mapstructure:"api_key"`
	APISecret         string            `mapstructure:"api_secret"`
	APIPass           string            `mapstructure:"api_password"`
	Wallet            string            `mapstructure:"wallet_address"`
	PrivateKey        string            `mapstructure:"private_key"`
	UseSandbox        bool              `mapstructure:"use_sandbox"`
	Symbols           map[string]string `mapstructure:"symbols"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
	SubmitTimeout     time.Duration     `mapstructure:"submit_timeout"`
	Retry             RetryConfig       `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

const (
	BalanceSourceStatic   = "static"
	BalanceSourceExchange = "exchange"
)

var supportedGateways = map[string]struct{}{
	"binanceusdm": {},
	"hyperliquid": {},
}

// Validate 对配置进行基本校验，一次性返回全部问题。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须位于(0,65535]"))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		err = multierr.Append(err, errors.New("server 读写超时必须大于0"))
	}
	if c.Risk.AccountBalance < 0 {
		err = multierr.Append(err, errors.New("risk.account_balance 不能为负"))
	}
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 5 {
		err = multierr.Append(err, errors.New("risk.risk_percent 必须位于(0,5]"))
	}
	if c.Risk.Leverage <= 0 {
		err = multierr.Append(err, errors.New("risk.leverage 必须大于0"))
	}
	if c.Risk.MaxLeverage <= 0 || c.Risk.MaxLeverage > 1500 {
		err = multierr.Append(err, errors.New("risk.max_leverage 必须位于(0,1500]"))
	}
	switch c.Risk.BalanceSource {
	case BalanceSourceStatic:
	case BalanceSourceExchange:
		if c.Gateway.Simulation {
			err = multierr.Append(err, errors.New("risk.balance_source=exchange 不能与 gateway.simulation 同时启用"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("risk.balance_source 不支持 %q", c.Risk.BalanceSource))
	}
	for symbol, size := range c.Pips.Overrides {
		if size <= 0 {
			err = multierr.Append(err, fmt.Errorf("pips.overrides.%s 必须大于0", symbol))
		}
	}
	if !c.Gateway.Simulation {
		if _, ok := supportedGateways[strings.ToLower(c.Gateway.Name)]; !ok {
			err = multierr.Append(err, fmt.Errorf("gateway.name 不支持 %q", c.Gateway.Name))
		}
		if strings.EqualFold(c.Gateway.Name, "hyperliquid") && (c.Gateway.Wallet == "" || c.Gateway.PrivateKey == "") {
			err = multierr.Append(err, errors.New("hyperliquid 交易需要配置 wallet_address 与 private_key"))
		}
	}
	if c.Gateway.RequestsPerSecond <= 0 {
		err = multierr.Append(err, errors.New("gateway.requests_per_second 必须大于0"))
	}
	if c.Gateway.SubmitTimeout <= 0 {
		err = multierr.Append(err, errors.New("gateway.submit_timeout 必须大于0"))
	}
	if c.Gateway.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("gateway.retry.max_attempts 必须大于0"))
	}
	if c.Gateway.Retry.MinDelay <= 0 || c.Gateway.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("gateway.retry.delay 必须为正"))
	}
	if c.Gateway.Retry.MinDelay > c.Gateway.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("gateway.retry.min_delay 不能大于 max_delay"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

// MarketFor 返回指令品种在交易所上的市场代码，未配置映射时原样返回。
func (g GatewayConfig) MarketFor(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for code, market := range g.Symbols {
		if strings.EqualFold(code, symbol) {
			return market
		}
	}
	return symbol
}
