package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
)

// Memory is an in-process archive used by tests and no-archive deployments.
// Transaction ids are content-addressed so re-publication of identical bytes
// yields the same id, mirroring a real append-only archive.
type Memory struct {
	mu    sync.Mutex
	byTx  map[string][]byte
	byID  map[string]string
	fail  error
	calls int
}

func NewMemory() *Memory {
	return &Memory{
		byTx: make(map[string][]byte),
		byID: make(map[string]string),
	}
}

func (m *Memory) PublishTransaction(ctx context.Context, payload []byte, contentType string, identifier string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return "", m.fail
	}
	sum := sha256.Sum256(payload)
	txID := hex.EncodeToString(sum[:])
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.byTx[txID] = buf
	if identifier != "" {
		m.byID[identifier] = txID
	}
	return txID, nil
}

func (m *Memory) IsPublished(ctx context.Context, identifier string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	_, ok := m.byID[identifier]
	return ok, nil
}

func (m *Memory) FetchByTxID(ctx context.Context, txID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	data, ok := m.byTx[txID]
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// FailWith makes every subsequent call return err; pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// PublishCalls reports how many publish attempts were made.
func (m *Memory) PublishCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var ErrUnavailable = errors.New("archive unavailable")
