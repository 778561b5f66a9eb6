package service

import (
	"sync"
	"sync/atomic"
)

// ReportHub fans cycle reports out to live subscribers such as the
// websocket stream. Slow subscribers lose reports instead of blocking the
// pipeline.
type ReportHub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan CycleReport
	nextID  uint64
	dropped uint64
}

func NewReportHub() *ReportHub {
	return &ReportHub{subs: map[uint64]chan CycleReport{}}
}

// Subscribe registers a listener. The returned cancel func closes the
// channel and must be called once the listener goes away.
func (h *ReportHub) Subscribe(buf int) (<-chan CycleReport, func()) {
	if buf <= 0 {
		buf = 4
	}
	ch := make(chan CycleReport, buf)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *ReportHub) Publish(report CycleReport) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- report:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

func (h *ReportHub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *ReportHub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return atomic.LoadUint64(&h.dropped)
}
