package app

import (
	"sync"

	"signal-desk/internal/desk"
)

const maxTrackedOrders = 1000

// orderBook 按客户端委托号保存提交后的交易台状态，超出容量时淘汰最早的记录。
type orderBook struct {
	mu     sync.Mutex
	states map[string]desk.State
	order  []string
}

func newOrderBook() *orderBook {
	return &orderBook{states: make(map[string]desk.State)}
}

func (b *orderBook) put(id string, s desk.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.states[id]; !ok {
		b.order = append(b.order, id)
	}
	b.states[id] = s

	for len(b.order) > maxTrackedOrders {
		delete(b.states, b.order[0])
		b.order = b.order[1:]
	}
}

func (b *orderBook) get(id string) (desk.State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[id]
	return s, ok
}

// update 对已记录的状态应用 fn，未记录的委托号被忽略。
func (b *orderBook) update(id string, fn func(desk.State) desk.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.states[id]; ok {
		b.states[id] = fn(s)
	}
}
