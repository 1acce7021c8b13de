package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrNotInitialized = errors.New("chain client not initialized")

const (
	dialTimeout   = 10 * time.Second
	verifyTimeout = 5 * time.Second
)

// Client is the wallet's raw RPC connection for the current chain. It is
// re-initialized whenever the active chain (or its RPC configuration)
// changes; callers go through the controller's chain-changed routine rather
// than calling Init directly.
type Client struct {
	mu  sync.RWMutex
	cfg *Config
	eth *ethclient.Client
}

func NewClient() *Client {
	return &Client{}
}

// Init connects the client to cfg, trying each RPC endpoint in order and
// verifying the reported chain id before accepting a connection. Any
// previous connection is closed.
func (c *Client) Init(cfg *Config) error {
	var lastErr error
	for _, rpcURL := range cfg.RPCURLs {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		eth, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		ctx, cancel = context.WithTimeout(context.Background(), verifyTimeout)
		chainID, err := eth.ChainID(ctx)
		cancel()
		if err != nil {
			eth.Close()
			lastErr = err
			continue
		}
		if chainID.Cmp(cfg.ChainIDBig()) != 0 {
			eth.Close()
			lastErr = fmt.Errorf("chain ID mismatch: expected %d, got %s", cfg.ID, chainID.String())
			continue
		}

		c.mu.Lock()
		if c.eth != nil {
			c.eth.Close()
		}
		c.cfg = cfg.Copy()
		c.eth = eth
		c.mu.Unlock()
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("no RPC endpoints configured")
	}
	return fmt.Errorf("failed to connect to chain %d: %w", cfg.ID, lastErr)
}

func (c *Client) backend() (*ethclient.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.eth == nil {
		return nil, ErrNotInitialized
	}
	return c.eth, nil
}

// ChainID returns the id of the chain the client is connected to.
func (c *Client) ChainID() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cfg == nil {
		return 0, ErrNotInitialized
	}
	return c.cfg.ID, nil
}

// GetBalance returns the native token balance for address.
func (c *Client) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	eth, err := c.backend()
	if err != nil {
		return nil, err
	}
	return eth.BalanceAt(ctx, address, nil)
}

// CodeAt returns the contract code deployed at address, if any.
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	eth, err := c.backend()
	if err != nil {
		return nil, err
	}
	return eth.CodeAt(ctx, address, nil)
}

// CallContract executes a read-only contract call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	eth, err := c.backend()
	if err != nil {
		return nil, err
	}
	return eth.CallContract(ctx, msg, nil)
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	c.cfg = nil
}
