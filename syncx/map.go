package syncx

import (
	"sync"
)

// Map is a typed wrapper of sync.Map.
type Map[TK comparable, TV any] struct {
	data sync.Map
}

func (m *Map[TK, TV]) Store(key TK, value TV) {
	m.data.Store(key, value)
}

func (m *Map[TK, TV]) Delete(key TK) {
	m.data.Delete(key)
}

func (m *Map[TK, TV]) Load(key TK) (value TV, ok bool) {
	v, ok := m.data.Load(key)
	if ok {
		value, ok = v.(TV)
	}
	return
}

// LoadOrStore keeps the first stored value when two goroutines race on the same key.
func (m *Map[TK, TV]) LoadOrStore(key TK, value TV) (TV, bool) {
	v, loaded := m.data.LoadOrStore(key, value)
	tv, _ := v.(TV)
	return tv, loaded
}

func (m *Map[TK, TV]) Range(f func(key TK, value TV) bool) {
	m.data.Range(func(k, v any) bool {
		tv, _ := v.(TV)
		return f(k.(TK), tv)
	})
}

func (m *Map[TK, TV]) Len() int {
	n := 0
	m.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func NewMap[TK comparable, TV any]() *Map[TK, TV] {
	return &Map[TK, TV]{}
}
