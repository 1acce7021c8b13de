package keyring

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoOwner         = errors.New("no owner created")
	ErrOwnerExists     = errors.New("owner already exists")
	ErrLocked          = errors.New("keyring is locked")
	ErrInvalidPassword = errors.New("invalid password")
)

const sessionFileName = "session"

// Owner is the wallet's signing identity. Smart accounts on every chain are
// derived from this one EOA key.
type Owner struct {
	Address common.Address `json:"address"`
}

// Keyring owns the encrypted owner key and its lock state. The private key
// is only held in memory while unlocked; Lock zeros it.
type Keyring struct {
	// mu protects owner/key from concurrent access. Prevents signing
	// operations from racing with Lock() which zeros the key material.
	mu      sync.RWMutex
	ks      *keystore.KeyStore
	dataDir string
	owner   *accounts.Account
	key     *ecdsa.PrivateKey // nil when locked
}

// New opens (or creates) the keystore directory and adopts an existing
// owner account if one is present.
func New(dataDir string) (*Keyring, error) {
	keystoreDir := filepath.Join(dataDir, "keystore")
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	// StandardScryptN and StandardScryptP are secure defaults
	ks := keystore.NewKeyStore(keystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)

	kr := &Keyring{ks: ks, dataDir: dataDir}
	if accts := ks.Accounts(); len(accts) > 0 {
		kr.owner = &accts[0]
	}
	return kr, nil
}

// CreateNewOwner creates the owner key encrypted under password and leaves
// the keyring unlocked.
func (kr *Keyring) CreateNewOwner(password string) (Owner, error) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.owner != nil {
		return Owner{}, ErrOwnerExists
	}

	account, err := kr.ks.NewAccount(password)
	if err != nil {
		return Owner{}, fmt.Errorf("failed to create owner: %w", err)
	}
	kr.owner = &account

	if err := kr.loadKey(account, password); err != nil {
		return Owner{}, err
	}
	kr.cacheSession(password)

	return Owner{Address: account.Address}, nil
}

// Owner returns the owner identity, or ErrNoOwner before CreateNewOwner.
func (kr *Keyring) Owner() (Owner, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	if kr.owner == nil {
		return Owner{}, ErrNoOwner
	}
	return Owner{Address: kr.owner.Address}, nil
}

// Locked reports whether the signing key is absent from memory.
func (kr *Keyring) Locked() bool {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.key == nil
}

// Unlock decrypts the owner key with password. A wrong password yields
// ErrInvalidPassword and the keyring stays locked.
func (kr *Keyring) Unlock(password string) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.owner == nil {
		return ErrNoOwner
	}
	if kr.key != nil {
		return nil
	}
	if err := kr.loadKey(*kr.owner, password); err != nil {
		return err
	}
	kr.cacheSession(password)
	return nil
}

// TryUnlock attempts an unlock with the cached session credential. It never
// fails: if no credential is cached or it no longer decrypts the key, the
// keyring simply remains locked.
func (kr *Keyring) TryUnlock() {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.owner == nil || kr.key != nil {
		return
	}
	password, err := os.ReadFile(kr.sessionPath())
	if err != nil {
		return
	}
	_ = kr.loadKey(*kr.owner, string(password))
}

// Lock zeros the private key material from memory and drops the cached
// session credential. Safe to call multiple times.
func (kr *Keyring) Lock() {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.key != nil {
		kr.key.D.SetInt64(0)
		kr.key = nil
	}
	_ = os.Remove(kr.sessionPath())
}

// SignHash signs a 32-byte digest with the owner key.
func (kr *Keyring) SignHash(hash []byte) ([]byte, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	if kr.key == nil {
		return nil, ErrLocked
	}
	return crypto.Sign(hash, kr.key)
}

// SignPersonal signs a message with the EIP-191 personal-sign envelope.
// The prefix prevents signed messages from being replayed as transactions.
func (kr *Keyring) SignPersonal(message []byte) ([]byte, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	if kr.key == nil {
		return nil, ErrLocked
	}

	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	hash := crypto.Keccak256([]byte(prefix), message)

	sig, err := crypto.Sign(hash, kr.key)
	if err != nil {
		return nil, err
	}

	// Transform V from crypto.Sign's 0/1 to 27/28, which is what the
	// ecrecover precompile and web3 tooling expect.
	sig[64] += 27

	return sig, nil
}

// loadKey decrypts the account key under password into memory.
// Caller holds mu.
func (kr *Keyring) loadKey(account accounts.Account, password string) error {
	keyJSON, err := os.ReadFile(account.URL.Path)
	if err != nil {
		return fmt.Errorf("failed to read owner key: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	kr.key = key.PrivateKey
	return nil
}

// cacheSession persists the credential for TryUnlock. Best effort; losing
// it only means the next TryUnlock stays locked. Caller holds mu.
func (kr *Keyring) cacheSession(password string) {
	_ = os.WriteFile(kr.sessionPath(), []byte(password), 0600)
}

func (kr *Keyring) sessionPath() string {
	return filepath.Join(kr.dataDir, sessionFileName)
}
