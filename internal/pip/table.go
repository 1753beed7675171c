// Package pip 提供品种到最小报价单位（pip）的换算表。
package pip

import "strings"

// Default 为未收录品种使用的 pip 大小，对应标准非日元货币对。
const Default = 0.0001

var builtin = map[string]float64{
	"EURUSD": 0.0001,
	"GBPUSD": 0.0001,
	"AUDUSD": 0.0001,
	"NZDUSD": 0.0001,
	"USDCAD": 0.0001,
	"USDCHF": 0.0001,
	"EURGBP": 0.0001,
	"EURCHF": 0.0001,
	"EURAUD": 0.0001,
	"GBPCHF": 0.0001,
	"USDJPY": 0.01,
	"EURJPY": 0.01,
	"GBPJPY": 0.01,
	"AUDJPY": 0.01,
	"CADJPY": 0.01,
	"CHFJPY": 0.01,
	"XAUUSD": 0.1,
	"XAGUSD": 0.01,
}

// Table 为只读的 pip 换算表。
type Table struct {
	sizes map[string]float64
}

// NewTable 以内置表为基础创建换算表，overrides 中的正值会新增或覆盖条目。
func NewTable(overrides map[string]float64) *Table {
	sizes := make(map[string]float64, len(builtin)+len(overrides))
	for symbol, size := range builtin {
		sizes[symbol] = size
	}
	for symbol, size := range overrides {
		if size > 0 {
			sizes[strings.ToUpper(strings.TrimSpace(symbol))] = size
		}
	}
	return &Table{sizes: sizes}
}

// Lookup 查询品种的 pip 大小。
func (t *Table) Lookup(symbol string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	size, ok := t.sizes[strings.ToUpper(symbol)]
	return size, ok
}

// Resolve 查询品种的 pip 大小，未收录时返回 Default。
func (t *Table) Resolve(symbol string) float64 {
	if size, ok := t.Lookup(symbol); ok {
		return size
	}
	return Default
}

// Symbols 返回表中收录的全部品种。
func (t *Table) Symbols() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.sizes))
	for symbol := range t.sizes {
		out = append(out, symbol)
	}
	return out
}
