package instruction

import (
	"math"
	"regexp"
	"strconv"
)

const numberExpr = `\d+(?:\.\d+)?`

var numberPattern = regexp.MustCompile(numberExpr)

// token 为文本中的一个数字片段，start/end 为字节偏移。
// embedded 表示片段紧贴字母或数字（如 TP1、H4），不属于独立数字。
type token struct {
	start    int
	end      int
	text     string
	embedded bool
}

// claimSet 记录每个数字片段被哪条规则占用，空串表示尚未占用。
type claimSet struct {
	tokens []token
	owners []string
}

func lexNumbers(text string) *claimSet {
	locs := numberPattern.FindAllStringIndex(text, -1)
	set := &claimSet{
		tokens: make([]token, 0, len(locs)),
		owners: make([]string, len(locs)),
	}
	for _, loc := range locs {
		set.tokens = append(set.tokens, token{
			start:    loc[0],
			end:      loc[1],
			text:     text[loc[0]:loc[1]],
			embedded: (loc[0] > 0 && isWordByte(text[loc[0]-1])) || (loc[1] < len(text) && isWordByte(text[loc[1]])),
		})
	}
	return set
}

func isWordByte(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// claim 占用 [start,end) 区间内所有未被占用的数字片段并按出现顺序返回其数值。
// 已被更早规则占用的片段会被跳过，解析失败的片段静默丢弃。
func (c *claimSet) claim(owner string, start, end int) []float64 {
	return c.take(owner, start, end, true)
}

// unclaimed 返回剩余未被占用的独立数字，供兜底扫描使用。
func (c *claimSet) unclaimed(owner string) []float64 {
	return c.take(owner, 0, math.MaxInt, false)
}

func (c *claimSet) take(owner string, start, end int, withEmbedded bool) []float64 {
	values := make([]float64, 0, 4)
	for i, tok := range c.tokens {
		if tok.start < start || tok.end > end || c.owners[i] != "" {
			continue
		}
		if tok.embedded && !withEmbedded {
			continue
		}
		c.owners[i] = owner
		if v, ok := parseNumber(tok.text); ok {
			values = append(values, v)
		}
	}
	return values
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
