package quotaLedger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu    sync.Mutex
	used  int64
	limit int64
}

// Memory keeps the ledger in process. Each account has its own mutex, so
// reservations for different accounts never contend.
type Memory struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[uuid.UUID]*entry)}
}

func (m *Memory) Open(_ context.Context, accountID uuid.UUID, limit, used int64) error {
	if err := checkSize(limit); err != nil {
		return err
	}
	if err := checkSize(used); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[accountID] = &entry{used: used, limit: limit}
	return nil
}

func (m *Memory) Reserve(_ context.Context, accountID uuid.UUID, size int64) error {
	if err := checkSize(size); err != nil {
		return err
	}
	e, err := m.entry(accountID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.used+size > e.limit {
		return quotaExceeded(accountID, size)
	}
	e.used += size
	return nil
}

func (m *Memory) Release(_ context.Context, accountID uuid.UUID, size int64) error {
	if err := checkSize(size); err != nil {
		return err
	}
	e, err := m.entry(accountID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.used = max(e.used-size, 0)
	return nil
}

func (m *Memory) Usage(_ context.Context, accountID uuid.UUID) (Usage, error) {
	e, err := m.entry(accountID)
	if err != nil {
		return Usage{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Usage{BytesUsed: e.used, QuotaLimit: e.limit}, nil
}

func (m *Memory) SetLimit(_ context.Context, accountID uuid.UUID, limit int64) error {
	if err := checkSize(limit); err != nil {
		return err
	}
	e, err := m.entry(accountID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limit = limit
	return nil
}

func (m *Memory) Close(_ context.Context, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, accountID)
	return nil
}

func (m *Memory) entry(accountID uuid.UUID) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[accountID]
	if !ok {
		return nil, unknownAccount(accountID)
	}
	return e, nil
}
