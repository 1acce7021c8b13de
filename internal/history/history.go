// Package history keeps the per-account list of submitted user operations.
package history

import (
	"errors"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ShuqiCH3N/Elytro/internal/userop"
)

var ErrNotInitialized = errors.New("history not initialized for an account")

// Status of a submitted user operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is the stored description of one submitted operation.
type Record struct {
	Op        *userop.Wire `json:"userOp"`
	OpHash    string       `json:"opHash"`
	ChainID   uint64       `json:"chainId"`
	Timestamp int64        `json:"timestamp"`
}

// Entry couples a record with its current status. The per-account list is
// append-only.
type Entry struct {
	Data   Record `json:"data"`
	Status Status `json:"status"`
}

// Store persists per-account history lists. Account keys are lowercase hex
// addresses.
type Store interface {
	Load(account string) ([]Entry, error)
	Append(account string, e Entry) error
}

// Manager holds the active account's history in memory. Switching account
// swaps the list; the manager starts uninitialized and the first read (or
// switch) loads from the store.
type Manager struct {
	mu      sync.RWMutex
	store   Store
	account string
	entries []Entry
	loaded  bool
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// IsInitialized reports whether a history list has been loaded.
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// SwitchAccount loads the history list for address, replacing the active
// list.
func (m *Manager) SwitchAccount(address common.Address) error {
	key := accountKey(address)

	entries, err := m.store.Load(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = key
	m.entries = entries
	m.loaded = true
	return nil
}

// Add appends an entry to the active account's history.
func (m *Manager) Add(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return ErrNotInitialized
	}
	if err := m.store.Append(m.account, e); err != nil {
		return err
	}
	m.entries = append(m.entries, e)
	return nil
}

// Histories returns a snapshot of the active account's entries.
func (m *Manager) Histories() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}

// accountKey normalizes addresses to the store's lowercase key convention
// so file and SQL rows never split across checksum casings.
func accountKey(address common.Address) string {
	return strings.ToLower(address.Hex())
}
