package overlay

// Surface 为外部图表渲染端需要实现的能力。
type Surface interface {
	ClearMarkers()
	AddMarker(Marker)
}

// Readiness 由尚未就绪时需要延迟绘制的渲染端实现。
// 渲染端自行负责就绪判断与重试，就绪后调用一次 fn。
type Readiness interface {
	WhenReady(fn func())
}

// Replacer 由能够一次性整体替换标记的渲染端实现，Render 优先使用它。
type Replacer interface {
	ReplaceMarkers([]Marker)
}

// Render 用 markers 整体替换渲染端上已有的标记。
func Render(surface Surface, markers []Marker) {
	if surface == nil {
		return
	}

	snapshot := make([]Marker, len(markers))
	copy(snapshot, markers)

	draw := func() {
		if r, ok := surface.(Replacer); ok {
			r.ReplaceMarkers(snapshot)
			return
		}
		surface.ClearMarkers()
		for _, m := range snapshot {
			surface.AddMarker(m)
		}
	}

	if r, ok := surface.(Readiness); ok {
		r.WhenReady(draw)
		return
	}
	draw()
}
