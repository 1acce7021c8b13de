package session

import "sync"

// DApp identifies an external web origin interacting with the wallet.
type DApp struct {
	Origin string `json:"origin"`
	Name   string `json:"name,omitempty"`
	Icon   string `json:"icon,omitempty"`
}

// Connection records that a dApp origin is connected and on which chain.
type Connection struct {
	DApp    DApp   `json:"dApp"`
	ChainID uint64 `json:"chainId"`
}

// Connections tracks which dApp origins are connected to the wallet.
type Connections struct {
	mu   sync.RWMutex
	byOr map[string]Connection
}

func NewConnections() *Connections {
	return &Connections{byOr: make(map[string]Connection)}
}

// Connect records (or refreshes) a dApp connection on the given chain.
func (c *Connections) Connect(dApp DApp, chainID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byOr[dApp.Origin] = Connection{DApp: dApp, ChainID: chainID}
}

// Disconnect removes a dApp connection.
func (c *Connections) Disconnect(origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byOr, origin)
}

// IsConnected reports whether origin has an active connection.
func (c *Connections) IsConnected(origin string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byOr[origin]
	return ok
}

// List returns a snapshot of all connections.
func (c *Connections) List() []Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Connection, 0, len(c.byOr))
	for _, conn := range c.byOr {
		out = append(out, conn)
	}
	return out
}
