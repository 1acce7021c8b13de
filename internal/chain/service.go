package chain

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownChain = errors.New("unknown chain")
	ErrChainExists  = errors.New("chain already configured")
	ErrCurrentChain = errors.New("cannot delete the current chain")
	ErrNoChains     = errors.New("no chains configured")
)

// Update is a partial chain-config change. Nil fields are left untouched.
type Update struct {
	DisplayName   *string  `json:"displayName,omitempty"`
	RPCURLs       []string `json:"rpcUrls,omitempty"`
	BundlerURL    *string  `json:"bundlerUrl,omitempty"`
	EntryPoint    *string  `json:"entryPoint,omitempty"`
	WalletFactory *string  `json:"walletFactory,omitempty"`
	ExplorerURL   *string  `json:"explorerUrl,omitempty"`
}

// Service owns the set of configured chains and the current-chain
// selection. It only mutates configuration; side effects of changing the
// active chain (SDK reset, client re-init, broadcasts) belong to the
// controller.
type Service struct {
	mu      sync.RWMutex
	chains  map[uint64]*Config
	order   []uint64
	current uint64
}

// NewService builds a service over configs, selecting the first entry as
// the current chain.
func NewService(configs []*Config) (*Service, error) {
	if len(configs) == 0 {
		return nil, ErrNoChains
	}
	s := &Service{chains: make(map[uint64]*Config)}
	for _, cfg := range configs {
		if _, dup := s.chains[cfg.ID]; dup {
			return nil, fmt.Errorf("%w: id %d", ErrChainExists, cfg.ID)
		}
		s.chains[cfg.ID] = cfg.Copy()
		s.order = append(s.order, cfg.ID)
	}
	s.current = configs[0].ID
	return s, nil
}

// CurrentChain returns the active chain config, or nil if the current
// selection no longer resolves.
func (s *Service) CurrentChain() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.chains[s.current]
	if !ok {
		return nil
	}
	return cfg.Copy()
}

// Chains returns all configured chains in insertion order.
func (s *Service) Chains() []*Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Config, 0, len(s.order))
	for _, id := range s.order {
		if cfg, ok := s.chains[id]; ok {
			out = append(out, cfg.Copy())
		}
	}
	return out
}

// Get returns the config for id.
func (s *Service) Get(id uint64) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.chains[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownChain, id)
	}
	return cfg.Copy(), nil
}

// UpdateChain applies a partial update to the chain with id.
func (s *Service) UpdateChain(id uint64, up Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.chains[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownChain, id)
	}
	if up.DisplayName != nil {
		cfg.DisplayName = *up.DisplayName
	}
	if up.RPCURLs != nil {
		cfg.RPCURLs = append([]string(nil), up.RPCURLs...)
	}
	if up.BundlerURL != nil {
		cfg.BundlerURL = *up.BundlerURL
	}
	if up.EntryPoint != nil {
		cfg.EntryPoint = *up.EntryPoint
	}
	if up.WalletFactory != nil {
		cfg.WalletFactory = *up.WalletFactory
	}
	if up.ExplorerURL != nil {
		cfg.ExplorerURL = *up.ExplorerURL
	}
	return nil
}

// AddChain registers a new chain configuration.
func (s *Service) AddChain(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.chains[cfg.ID]; dup {
		return fmt.Errorf("%w: id %d", ErrChainExists, cfg.ID)
	}
	s.chains[cfg.ID] = cfg.Copy()
	s.order = append(s.order, cfg.ID)
	return nil
}

// DeleteChain removes a chain. The current chain cannot be deleted.
func (s *Service) DeleteChain(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chains[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownChain, id)
	}
	if id == s.current {
		return ErrCurrentChain
	}
	delete(s.chains, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SwitchChain makes id the current chain and returns its config. Switching
// to the already-current chain is a no-op and returns nil.
func (s *Service) SwitchChain(id uint64) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.chains[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownChain, id)
	}
	if id == s.current {
		return nil, nil
	}
	s.current = id
	return cfg.Copy(), nil
}
