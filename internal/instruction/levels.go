package instruction

import "regexp"

var (
	entryPattern   = regexp.MustCompile(`@\s*` + numberExpr + `(?:\s*-\s*` + numberExpr + `)?`)
	stopPattern    = regexp.MustCompile(`(?i)\bsl\s*:?\s*` + numberExpr)
	targetsPattern = regexp.MustCompile(`(?i)\btargets?\s*:?\s*` + numberExpr + `(?:(?:\s*-\s*|\s+)` + numberExpr + `)*`)
	rangePattern   = regexp.MustCompile(`(?i)\brange:\s*` + numberExpr + `(?:(?:\s*-\s*|\s+)` + numberExpr + `)*`)
)

// levelRule 描述一条价格提取规则。规则按列表顺序执行，先执行的规则优先占用数字。
type levelRule struct {
	name    string
	pattern *regexp.Regexp
	all     bool
	bind    func(p *Parsed, values []float64)
}

var levelRules = []levelRule{
	{name: "entry", pattern: entryPattern, bind: bindEntry},
	{name: "stop_loss", pattern: stopPattern, bind: bindStopLoss},
	{name: "targets", pattern: targetsPattern, all: true, bind: appendTargets},
	{name: "range", pattern: rangePattern, all: true, bind: appendTargets},
}

const fallbackOwner = "fallback"

// extractLevels 依次执行规则列表，最后把未被占用的数字追加为目标价。
func extractLevels(text string, p *Parsed) {
	claims := lexNumbers(text)

	for _, rule := range levelRules {
		var spans [][]int
		if rule.all {
			spans = rule.pattern.FindAllStringIndex(text, -1)
		} else if loc := rule.pattern.FindStringIndex(text); loc != nil {
			spans = [][]int{loc}
		}
		for _, span := range spans {
			values := claims.claim(rule.name, span[0], span[1])
			if len(values) > 0 {
				rule.bind(p, values)
			}
		}
	}

	appendTargets(p, claims.unclaimed(fallbackOwner))
}

func bindEntry(p *Parsed, values []float64) {
	p.EntryMin = price(values[0])
	if len(values) > 1 {
		p.EntryMax = price(values[1])
	}
}

func bindStopLoss(p *Parsed, values []float64) {
	p.StopLoss = price(values[0])
}

func appendTargets(p *Parsed, values []float64) {
	p.Targets = append(p.Targets, values...)
}
