package pasteboard

import (
	"errors"
	"sync"
)

// ErrFormatUnavailable is returned when a requested format is not present
var ErrFormatUnavailable = errors.New("format not available on pasteboard")

// Memory is an in-process pasteboard used for headless runs and tests
type Memory struct {
	mu     sync.RWMutex
	items  []Item
	change int64
}

// NewMemory returns an empty in-memory pasteboard
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ChangeCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.change
}

func (m *Memory) Formats() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.items))
	for i, it := range m.items {
		out[i] = it.Format
	}
	return out, nil
}

func (m *Memory) Read(format string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if it.Format == format {
			out := make([]byte, len(it.Data))
			copy(out, it.Data)
			return out, nil
		}
	}
	return nil, ErrFormatUnavailable
}

func (m *Memory) Write(items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]Item, len(items))
	for i, it := range items {
		data := make([]byte, len(it.Data))
		copy(data, it.Data)
		m.items[i] = Item{Format: it.Format, Data: data}
	}
	m.change++
	return nil
}

// SetText simulates another application copying plain text
func (m *Memory) SetText(text string) {
	_ = m.Write([]Item{{Format: FormatPlainText, Data: []byte(text)}})
}
