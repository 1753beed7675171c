package account

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var quoteCurrencies = []string{"USDC", "USD", "USDT"}

// Snapshot 描述账户权益及余额。
type Snapshot struct {
	TotalEquity float64   `json:"total_equity"`
	TotalUSD    float64   `json:"total_usd"`
	FreeUSD     float64   `json:"free_usd"`
	MarginUsed  float64   `json:"margin_used"`
	Timestamp   time.Time `json:"timestamp"`
}

// snapshotFromBalances 从 ccxt 余额中提取以美元计价的账户权益。
// 优先使用稳定币总额，其次使用 hyperliquid 的 marginSummary。
func snapshotFromBalances(balances ccxt.Balances, now time.Time) Snapshot {
	snap := Snapshot{Timestamp: now}

	if balances.Total != nil {
		for _, code := range quoteCurrencies {
			if total, ok := balances.Total[code]; ok && total != nil && *total > 0 {
				snap.TotalUSD = *total
				break
			}
		}
	}
	if balances.Free != nil {
		for _, code := range quoteCurrencies {
			if free, ok := balances.Free[code]; ok && free != nil {
				snap.FreeUSD = *free
				break
			}
		}
	}
	if balances.Info != nil {
		if summary, ok := balances.Info["marginSummary"].(map[string]interface{}); ok {
			if v := parseNumeric(summary["accountValue"]); v > 0 {
				snap.TotalEquity = v
			}
			if snap.TotalUSD == 0 {
				snap.TotalUSD = parseNumeric(summary["totalRawUsd"])
			}
			snap.MarginUsed = parseNumeric(summary["totalMarginUsed"])
		}
		if v := parseNumeric(balances.Info["withdrawable"]); v > 0 && snap.FreeUSD == 0 {
			snap.FreeUSD = v
		}
	}

	if snap.TotalEquity == 0 {
		snap.TotalEquity = snap.TotalUSD
	}
	return snap
}

func parseNumeric(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case *float64:
		if v != nil {
			return *v
		}
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		return parseFloatString(v)
	case fmt.Stringer:
		return parseFloatString(v.String())
	}
	return 0
}

func parseFloatString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
