package objectstore

import (
	"context"
	"sync"
)

type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	prefix  string
	putErr  error
}

func NewMemory(prefix string) *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		prefix:  prefix,
	}
}

func (m *Memory) Name() string {
	return "memory"
}

func (m *Memory) PutObject(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = buf
	return nil
}

// FailPuts makes subsequent writes return err; pass nil to recover.
func (m *Memory) FailPuts(err error) {
	m.mu.Lock()
	m.putErr = err
	m.mu.Unlock()
}

func (m *Memory) GetObject(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (m *Memory) URL(key string) string {
	return "memory://" + m.prefix + "/" + key
}

// Delete is a test hook for simulating mirror drift.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
}

// Corrupt is a test hook replacing a stored object out-of-band.
func (m *Memory) Corrupt(key string, data []byte) {
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
}
