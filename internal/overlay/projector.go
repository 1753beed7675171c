// Package overlay 将交易指令投影为图表价格标记。
package overlay

import (
	"fmt"

	"signal-desk/internal/instruction"
)

const (
	ColorEntryBuy  = "entry-buy"
	ColorEntrySell = "entry-sell"
	ColorRisk      = "risk"
	ColorReward    = "reward"

	LabelEntry    = "Entry"
	LabelStopLoss = "SL"
)

// Marker 为单个图表价格标记。
type Marker struct {
	Price      float64 `json:"price"`
	Label      string  `json:"label"`
	ColorClass string  `json:"color_class"`
}

// Project 按入场、止损、目标的顺序生成标记；没有任何价格时返回空切片。
func Project(p instruction.Parsed) []Marker {
	markers := make([]Marker, 0, 2+len(p.Targets))

	if p.EntryMin != nil {
		color := ColorEntrySell
		if p.Direction == instruction.DirectionBuy {
			color = ColorEntryBuy
		}
		markers = append(markers, Marker{Price: *p.EntryMin, Label: LabelEntry, ColorClass: color})
	}

	if p.StopLoss != nil {
		markers = append(markers, Marker{Price: *p.StopLoss, Label: LabelStopLoss, ColorClass: ColorRisk})
	}

	for i, target := range p.Targets {
		markers = append(markers, Marker{
			Price:      target,
			Label:      fmt.Sprintf("TP%d", i+1),
			ColorClass: ColorReward,
		})
	}

	return markers
}
