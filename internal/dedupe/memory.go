package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	at   time.Time
	elem *list.Element
}

// Memory is a process-local Store bounded by TTL and entry count. The oldest
// key is evicted when full.
type Memory struct {
	mu      sync.Mutex
	seen    map[string]*memEntry
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

func NewMemory(ttl time.Duration, maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 10000
	}

	m := &Memory{
		seen:    make(map[string]*memEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go m.sweepLoop(time.Minute)

	return m
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.seen[key]; ok {
		if now.Sub(e.at) < m.ttl {
			return true, nil
		}
		e.at = now
		m.order.MoveToBack(e.elem)
		return false, nil
	}

	if len(m.seen) >= m.maxSize {
		if front := m.order.Front(); front != nil {
			m.order.Remove(front)
			delete(m.seen, front.Value.(string))
		}
	}

	m.seen[key] = &memEntry{at: now, elem: m.order.PushBack(key)}

	return false, nil
}

func (m *Memory) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.seen[key]; ok {
		m.order.Remove(e.elem)
		delete(m.seen, key)
	}

	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func (m *Memory) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			m.sweep()
		case <-m.done:
			return
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for e := m.order.Front(); e != nil; {
		next := e.Next()
		key := e.Value.(string)
		if now.Sub(m.seen[key].at) >= m.ttl {
			m.order.Remove(e)
			delete(m.seen, key)
		}
		e = next
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
