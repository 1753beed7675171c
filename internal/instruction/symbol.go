package instruction

import (
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`(?i)\b(?:XAUUSD|[A-Z]{6})\b`)

// 语法关键字中恰好为 6 个字母的单词，不能当作品种。
var reservedWords = map[string]struct{}{
	"TARGET": {},
}

// 已知的币种代码，用于在多个 6 字母单词中优先挑选真实货币对。
var currencyCodes = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CHF": {}, "AUD": {}, "NZD": {}, "CAD": {},
	"SEK": {}, "NOK": {}, "DKK": {}, "SGD": {}, "HKD": {}, "ZAR": {}, "MXN": {}, "TRY": {},
	"PLN": {}, "CNH": {}, "XAU": {}, "XAG": {}, "BTC": {}, "ETH": {},
}

// ExtractSymbol 提取交易品种，统一转换为大写；未识别时返回空串。
//
// 优先返回由两个已知币种组成的代码，其次返回第一个非关键字的 6 字母单词。
func ExtractSymbol(text string) string {
	var fallback string
	for _, match := range symbolPattern.FindAllString(text, -1) {
		code := strings.ToUpper(match)
		if _, reserved := reservedWords[code]; reserved {
			continue
		}
		if isCurrencyPair(code) {
			return code
		}
		if fallback == "" {
			fallback = code
		}
	}
	return fallback
}

func isCurrencyPair(code string) bool {
	if len(code) != 6 {
		return false
	}
	_, base := currencyCodes[code[:3]]
	_, quote := currencyCodes[code[3:]]
	return base && quote
}

// ExtractDirection 根据文本中是否出现 "buy" 判断方向，缺失即视为 SELL。
// 第二个返回值表示文本中是否出现了 buy 或 sell 字样。
func ExtractDirection(text string) (Direction, bool) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "buy") {
		return DirectionBuy, true
	}
	return DirectionSell, strings.Contains(lower, "sell")
}
