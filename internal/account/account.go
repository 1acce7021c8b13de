// Package account tracks the wallet's smart accounts: one per chain, all
// derived from the single owner key, with one account current at a time.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoCurrentAccount = errors.New("no current account")
	ErrAccountNotFound  = errors.New("account not found")
	ErrNoOwnerRecorded  = errors.New("no owner recorded for account derivation")
)

const (
	accountsFileName = "accounts.json"
	filePerms        = 0600 // Owner read/write only
)

// Account is a smart account bound to one chain. Address is immutable once
// created; IsDeployed flips to true once on-chain deployment is observed
// and never goes back. Balance is a wei amount and serializes as a 0x-hex
// string so it survives JSON consumers that parse numbers as float64.
type Account struct {
	Address    common.Address `json:"address"`
	ChainID    uint64         `json:"chainId"`
	IsDeployed bool           `json:"isDeployed"`
	Balance    *hexutil.Big   `json:"balance,omitempty"`
}

// fileData is the structure of accounts.json.
type fileData struct {
	Version  int             `json:"version"`
	Owner    *common.Address `json:"owner,omitempty"`
	Accounts []Account       `json:"accounts"`
	Current  int             `json:"current"` // index into Accounts, -1 for none
}

// Manager owns the account set and the current-account selection, persisted
// to a JSON file in the data directory.
type Manager struct {
	mu       sync.RWMutex
	filePath string
	data     *fileData
}

// NewManager loads (or initializes) the account file under dataDir.
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	m := &Manager{
		filePath: filepath.Join(dataDir, accountsFileName),
		data:     &fileData{Version: 1, Current: -1},
	}
	if err := m.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	return m, nil
}

// CreateAccountAsCurrent creates (or reuses) the smart account for owner on
// chainID and makes it current.
func (m *Manager) CreateAccountAsCurrent(owner common.Address, chainID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.Owner = &owner
	for i, acc := range m.data.Accounts {
		if acc.ChainID == chainID {
			m.data.Current = i
			return m.save()
		}
	}

	m.data.Accounts = append(m.data.Accounts, Account{
		Address: DeriveAddress(owner, chainID),
		ChainID: chainID,
	})
	m.data.Current = len(m.data.Accounts) - 1
	return m.save()
}

// SwitchAccountByChainID makes the account for chainID current, creating it
// first when the chain has never been used. Creation needs the recorded
// owner; a wallet that never created an account cannot switch.
func (m *Manager) SwitchAccountByChainID(chainID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, acc := range m.data.Accounts {
		if acc.ChainID == chainID {
			m.data.Current = i
			return m.save()
		}
	}

	if m.data.Owner == nil {
		return ErrNoOwnerRecorded
	}
	m.data.Accounts = append(m.data.Accounts, Account{
		Address: DeriveAddress(*m.data.Owner, chainID),
		ChainID: chainID,
	})
	m.data.Current = len(m.data.Accounts) - 1
	return m.save()
}

// CurrentAccount returns the current account.
func (m *Manager) CurrentAccount() (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data.Current < 0 || m.data.Current >= len(m.data.Accounts) {
		return Account{}, ErrNoCurrentAccount
	}
	return m.data.Accounts[m.data.Current], nil
}

// Accounts returns a snapshot of all accounts.
func (m *Manager) Accounts() []Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Account(nil), m.data.Accounts...)
}

// ActivateCurrentAccount marks the current account as deployed.
func (m *Manager) ActivateCurrentAccount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data.Current < 0 || m.data.Current >= len(m.data.Accounts) {
		return ErrNoCurrentAccount
	}
	m.data.Accounts[m.data.Current].IsDeployed = true
	return m.save()
}

// RemoveAccountByAddress deletes the account with the given address. If it
// was current, the wallet is left with no current account.
func (m *Manager) RemoveAccountByAddress(address common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, acc := range m.data.Accounts {
		if acc.Address == address {
			m.data.Accounts = append(m.data.Accounts[:i], m.data.Accounts[i+1:]...)
			switch {
			case m.data.Current == i:
				m.data.Current = -1
			case m.data.Current > i:
				m.data.Current--
			}
			return m.save()
		}
	}
	return fmt.Errorf("%w: %s", ErrAccountNotFound, address.Hex())
}

// DeriveAddress computes the counterfactual smart-account address for owner
// on chainID (salt 0). The factory deploys to the same address, so the
// account is usable before deployment.
func DeriveAddress(owner common.Address, chainID uint64) common.Address {
	salt := common.LeftPadBytes(new(big.Int).SetUint64(chainID).Bytes(), 32)
	hash := crypto.Keccak256(owner.Bytes(), salt)
	return common.BytesToAddress(hash[12:])
}

// load reads the accounts file from disk. Caller need not hold mu; only
// called from NewManager.
func (m *Manager) load() error {
	raw, err := os.ReadFile(m.filePath)
	if err != nil {
		return err
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse accounts file: %w", err)
	}
	if data.Accounts == nil {
		data.Accounts = []Account{}
	}
	if data.Current >= len(data.Accounts) {
		data.Current = -1
	}
	m.data = &data
	return nil
}

// save writes the accounts file with a tmp+rename so a crash mid-write
// never leaves a torn file. Caller holds mu.
func (m *Manager) save() error {
	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	tmpPath := m.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, raw, filePerms); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}
	if err := os.Rename(tmpPath, m.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save accounts file: %w", err)
	}
	return nil
}
