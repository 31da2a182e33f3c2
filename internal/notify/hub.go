// notify - адаптер канала уведомлений: подписка/отписка с любым числом слушателей.
package notify

import (
	"sync"

	"github.com/pribylovaa/go-comments-client/internal/models"
)

// Hub раздаёт каждое опубликованное уведомление всем текущим подписчикам.
// Слушатели вызываются синхронно, в порядке подписки, вне мьютекса хаба.
type Hub struct {
	mu        sync.RWMutex
	next      uint64
	order     []uint64
	listeners map[uint64]func(models.Event)
}

// NewHub создаёт пустой хаб.
func NewHub() *Hub {
	return &Hub{listeners: make(map[uint64]func(models.Event))}
}

// Subscribe добавляет слушателя. Возвращаемая функция отписки идемпотентна.
func (h *Hub) Subscribe(fn func(models.Event)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.order = append(h.order, id)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			delete(h.listeners, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish доставляет ev всем подписчикам.
func (h *Hub) Publish(ev models.Event) {
	h.mu.RLock()
	fns := make([]func(models.Event), 0, len(h.order))
	for _, id := range h.order {
		fns = append(fns, h.listeners[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len - число подписчиков.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.listeners)
}
