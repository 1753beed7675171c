// Package instruction 将自由文本交易指令解析为结构化结果。
//
// 品种取文本中第一个由已知货币代码组成的六字母词，没有时才退回第一个六字母词，
// 因此 "please buy gbpjpy" 解析为 GBPJPY 而不是 PLEASE。
package instruction

import "fmt"

// Parse 解析单条交易指令。
//
// 缺失的品种、方向或价位不会导致失败，而是以空值体现；只有内部异常才返回 *ParseError。
// 每次调用都返回全新的结果，不依赖任何共享状态。
func Parse(text string) (result Parsed, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Parsed{}
			err = &ParseError{Cause: fmt.Errorf("%v", r)}
		}
	}()

	result = Parsed{
		Symbol:  ExtractSymbol(text),
		Targets: make([]float64, 0),
	}
	result.Direction, result.DirectionExplicit = ExtractDirection(text)

	extractLevels(text, &result)

	return result, nil
}
