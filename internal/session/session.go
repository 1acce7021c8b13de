// Package session links connected dApp origins to the wallet's runtime
// state and fans wallet events out to them.
package session

import "sync"

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Message is a wallet-state-change event delivered to a dApp session.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// sessionBuffer bounds per-session queues. Broadcasts are fire-and-forget:
// a session that stops draining loses events rather than blocking the
// controller.
const sessionBuffer = 16

// Manager is a registry of live dApp sessions keyed by origin. One origin
// may hold several sessions (several tabs of the same dApp).
type Manager struct {
	mu       sync.RWMutex
	nextID   int
	sessions map[string]map[int]chan Message
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]map[int]chan Message)}
}

// Subscribe registers a session for origin and returns its event channel
// plus an unsubscribe function.
func (m *Manager) Subscribe(origin string) (<-chan Message, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	ch := make(chan Message, sessionBuffer)

	if m.sessions[origin] == nil {
		m.sessions[origin] = make(map[int]chan Message)
	}
	m.sessions[origin][id] = ch

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if set, ok := m.sessions[origin]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(m.sessions, origin)
			}
		}
	}
	return ch, unsubscribe
}

// BroadcastToDApp sends an event to every session of a single origin.
// Origins that never connected have no sessions and receive nothing.
func (m *Manager) BroadcastToDApp(origin, event string, payload any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.sessions[origin] {
		deliver(ch, Message{Event: event, Payload: payload})
	}
}

// Broadcast sends an event to every connected session.
func (m *Manager) Broadcast(event string, payload any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, set := range m.sessions {
		for _, ch := range set {
			deliver(ch, Message{Event: event, Payload: payload})
		}
	}
}

// CloseOrigin closes and removes every session of origin. Subscribers see
// their channel close and stop streaming.
func (m *Manager) CloseOrigin(origin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.sessions[origin] {
		close(ch)
	}
	delete(m.sessions, origin)
}

// SessionCount reports the number of live sessions for origin.
func (m *Manager) SessionCount(origin string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[origin])
}

func deliver(ch chan Message, msg Message) {
	select {
	case ch <- msg:
	default:
		// Slow consumer; drop rather than stall the broadcaster.
	}
}
