// Package wallet implements the background controller that composes the
// keyring, approval queue, sessions, chain state, accounts and SDK into the
// operations dApps and the UI call. The controller holds no state of its
// own; it sequences the managers and enforces the cross-service invariants
// (chain switch before account creation, unlock or approval before
// signing).
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/ShuqiCH3N/Elytro/internal/account"
	"github.com/ShuqiCH3N/Elytro/internal/approval"
	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/history"
	"github.com/ShuqiCH3N/Elytro/internal/keyring"
	"github.com/ShuqiCH3N/Elytro/internal/session"
	"github.com/ShuqiCH3N/Elytro/internal/userop"
)

// Services bundles the collaborators a Controller coordinates. Initialized
// once per process and torn down on process exit.
type Services struct {
	Keyring     Keyring
	Approvals   *approval.Service
	Connections *session.Connections
	Sessions    *session.Manager
	Chains      *chain.Service
	Accounts    *account.Manager
	Histories   *history.Manager
	SDK         SDK
	Client      ChainClient
}

// Controller is the single entry point for wallet operations. Every method
// takes a context because each call crosses a process boundary and may
// suspend on external services.
type Controller struct {
	svc Services
	log *logrus.Entry
}

func NewController(svc Services) *Controller {
	return &Controller{
		svc: svc,
		log: logrus.WithField("module", "wallet"),
	}
}

// --- keyring ---

// CreateNewOwner creates the wallet's owner identity.
func (c *Controller) CreateNewOwner(ctx context.Context, password string) (keyring.Owner, error) {
	owner, err := c.svc.Keyring.CreateNewOwner(password)
	if err != nil {
		return keyring.Owner{}, err
	}
	c.log.WithField("owner", owner.Address.Hex()).Info("owner created")
	return owner, nil
}

// GetLockStatus attempts a lazy unlock with cached credentials, then
// reports the lock state.
func (c *Controller) GetLockStatus(ctx context.Context) (bool, error) {
	c.svc.Keyring.TryUnlock()
	return c.svc.Keyring.Locked(), nil
}

// Lock locks the keyring.
func (c *Controller) Lock(ctx context.Context) error {
	c.svc.Keyring.Lock()
	c.log.Info("wallet locked")
	return nil
}

// Unlock unlocks the keyring with password.
func (c *Controller) Unlock(ctx context.Context, password string) error {
	if err := c.svc.Keyring.Unlock(password); err != nil {
		return err
	}
	c.log.Info("wallet unlocked")
	return nil
}

// --- approvals ---

// GetCurrentApproval returns the pending approval, or nil when none.
func (c *Controller) GetCurrentApproval(ctx context.Context) (*approval.Approval, error) {
	return c.svc.Approvals.Current(), nil
}

// ResolveApproval completes the approval with id. A stale id is a no-op.
func (c *Controller) ResolveApproval(ctx context.Context, id string, data map[string]any) error {
	c.svc.Approvals.Resolve(id, data)
	return nil
}

// RejectApproval cancels the approval with id. A stale id is a no-op.
func (c *Controller) RejectApproval(ctx context.Context, id string) error {
	c.svc.Approvals.Reject(id, "rejected by user")
	return nil
}

// --- connections / sessions ---

// ConnectWallet registers dApp on chainID and announces the current account
// to that origin only. Unrelated sessions must not learn the account from
// someone else's connect.
func (c *Controller) ConnectWallet(ctx context.Context, dApp session.DApp, chainID uint64) error {
	c.svc.Connections.Connect(dApp, chainID)
	c.svc.Sessions.BroadcastToDApp(dApp.Origin, session.EventAccountsChanged, c.accountAddresses())
	return nil
}

// SubscribeEvents opens an event stream for origin. Connection is the
// consent boundary for wallet events: an origin that never connected is
// refused and learns nothing from broadcasts.
func (c *Controller) SubscribeEvents(ctx context.Context, origin string) (<-chan session.Message, func(), error) {
	if !c.svc.Connections.IsConnected(origin) {
		return nil, nil, errUnauthorized("origin %q is not connected", origin)
	}
	ch, unsubscribe := c.svc.Sessions.Subscribe(origin)
	return ch, unsubscribe, nil
}

// DisconnectWallet drops origin's connection and closes its event streams.
func (c *Controller) DisconnectWallet(ctx context.Context, origin string) error {
	c.svc.Connections.Disconnect(origin)
	c.svc.Sessions.CloseOrigin(origin)
	c.log.WithField("origin", origin).Info("dapp disconnected")
	return nil
}

// GetConnectedDApps returns every connected dApp.
func (c *Controller) GetConnectedDApps(ctx context.Context) ([]session.Connection, error) {
	return c.svc.Connections.List(), nil
}

// --- signing ---

// SignUserOperation signs the operation with the owner key.
func (c *Controller) SignUserOperation(ctx context.Context, w *userop.Wire) (*userop.Wire, error) {
	if err := c.ensureUnlocked(ctx, ""); err != nil {
		return nil, err
	}
	op, err := w.Deformat()
	if err != nil {
		return nil, errInvalidParams("%v", err)
	}
	signed, err := c.svc.SDK.SignUserOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	return userop.Format(signed), nil
}

// SendUserOperation signs (if needed) and submits the operation, returning
// the user-op hash. The fee fields are deformatted by name on this path.
func (c *Controller) SendUserOperation(ctx context.Context, w *userop.Wire) (string, error) {
	if err := c.ensureUnlocked(ctx, ""); err != nil {
		return "", err
	}
	op, err := w.DeformatWithFees()
	if err != nil {
		return "", errInvalidParams("%v", err)
	}
	opHash, err := c.svc.SDK.SendUserOperation(ctx, op)
	if err != nil {
		return "", err
	}
	c.log.WithField("opHash", opHash).Info("user operation sent")
	return opHash, nil
}

// SignMessage signs a textual message with the current account.
func (c *Controller) SignMessage(ctx context.Context, message any) (string, error) {
	cur, err := c.svc.Accounts.CurrentAccount()
	if err != nil {
		return "", errInternal("no current account: %v", err)
	}
	text, ok := message.(string)
	if !ok {
		return "", errInvalidParams("message must be a string, got %T", message)
	}
	if err := c.ensureUnlocked(ctx, ""); err != nil {
		return "", err
	}
	return c.svc.SDK.SignMessage(ctx, text, cur.Address)
}

// SignTypedData hashes a typed-data payload (EIP-712 JSON document or the
// legacy entry list) and signs the hash via SignMessage. Every failure is
// normalized to one internal error carrying the original message.
func (c *Controller) SignTypedData(ctx context.Context, typedData any) (string, error) {
	hash, err := hashTypedData(typedData)
	if err != nil {
		return "", errInternal("%v", err)
	}
	sig, err := c.SignMessage(ctx, hexutil.Encode(hash))
	if err != nil {
		return "", errInternal("%v", err)
	}
	return sig, nil
}

// --- history ---

// HistoryItem is an entry flattened for the boundary: the record fields
// plus the status.
type HistoryItem struct {
	history.Record
	Status history.Status `json:"status"`
}

// AddNewHistory appends a record for the current account.
func (c *Controller) AddNewHistory(ctx context.Context, rec history.Record) error {
	if err := c.initHistories(); err != nil {
		return err
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	return c.svc.Histories.Add(history.Entry{Data: rec, Status: history.StatusPending})
}

// GetLatestHistories returns the current account's history, lazily loading
// it on first read.
func (c *Controller) GetLatestHistories(ctx context.Context) ([]HistoryItem, error) {
	if err := c.initHistories(); err != nil {
		return nil, err
	}
	entries := c.svc.Histories.Histories()
	items := make([]HistoryItem, len(entries))
	for i, e := range entries {
		items[i] = HistoryItem{Record: e.Data, Status: e.Status}
	}
	return items, nil
}

func (c *Controller) initHistories() error {
	if c.svc.Histories.IsInitialized() {
		return nil
	}
	cur, err := c.svc.Accounts.CurrentAccount()
	if err != nil {
		return errInternal("no current account: %v", err)
	}
	return c.svc.Histories.SwitchAccount(cur.Address)
}

// --- chains ---

// GetCurrentChain returns the active chain config.
func (c *Controller) GetCurrentChain(ctx context.Context) (*chain.Config, error) {
	return c.svc.Chains.CurrentChain(), nil
}

// GetChains returns all configured chains.
func (c *Controller) GetChains(ctx context.Context) ([]*chain.Config, error) {
	return c.svc.Chains.Chains(), nil
}

// UpdateChainConfig applies a partial update to the chain with id. When the
// updated chain is the active one its new configuration must take effect
// immediately, so the chain-changed routine runs; other chains' updates are
// plain config edits.
func (c *Controller) UpdateChainConfig(ctx context.Context, id uint64, up chain.Update) error {
	if err := c.svc.Chains.UpdateChain(id, up); err != nil {
		return err
	}
	cur := c.svc.Chains.CurrentChain()
	if cur != nil && cur.ID == id {
		return c.onChainConfigChanged(cur)
	}
	return nil
}

// AddChain registers a new chain.
func (c *Controller) AddChain(ctx context.Context, cfg *chain.Config) error {
	return c.svc.Chains.AddChain(cfg)
}

// DeleteChain removes a chain.
func (c *Controller) DeleteChain(ctx context.Context, id uint64) error {
	return c.svc.Chains.DeleteChain(id)
}

// --- accounts ---

// GetAccounts returns all accounts.
func (c *Controller) GetAccounts(ctx context.Context) ([]account.Account, error) {
	return c.svc.Accounts.Accounts(), nil
}

// GetCurrentAccount returns the current account with a live balance. If the
// account has not been observed deployed yet, deployment status is
// re-checked and cached once seen.
func (c *Controller) GetCurrentAccount(ctx context.Context) (account.Account, error) {
	cur, err := c.svc.Accounts.CurrentAccount()
	if err != nil {
		return account.Account{}, errInternal("no current account: %v", err)
	}

	if !cur.IsDeployed {
		deployed, err := c.svc.SDK.IsSmartAccountDeployed(ctx, cur.Address)
		if err != nil {
			return account.Account{}, err
		}
		if deployed {
			if err := c.svc.Accounts.ActivateCurrentAccount(); err != nil {
				return account.Account{}, err
			}
			cur.IsDeployed = true
		}
	}

	balance, err := c.svc.Client.GetBalance(ctx, cur.Address)
	if err != nil {
		return account.Account{}, err
	}
	cur.Balance = (*hexutil.Big)(balance)
	return cur, nil
}

// CreateAccount creates the owner's smart account on chainID, switching the
// active chain first when needed. Account creation never runs against the
// old chain.
func (c *Controller) CreateAccount(ctx context.Context, chainID uint64) error {
	owner, err := c.svc.Keyring.Owner()
	if err != nil {
		return errInternal("cannot create an account before an owner exists: %v", err)
	}

	switched, err := c.svc.Chains.SwitchChain(chainID)
	if err != nil {
		return err
	}
	if switched != nil {
		if err := c.onChainConfigChanged(switched); err != nil {
			return err
		}
	}

	if err := c.svc.Accounts.CreateAccountAsCurrent(owner.Address, chainID); err != nil {
		return err
	}
	c.log.WithField("chainId", chainID).Info("account created")
	return nil
}

// SwitchAccountByChain moves the wallet to chainID: chain, current account
// and history all follow, and every session hears about the account change.
func (c *Controller) SwitchAccountByChain(ctx context.Context, chainID uint64) error {
	switched, err := c.svc.Chains.SwitchChain(chainID)
	if err != nil {
		return err
	}
	if switched != nil {
		if err := c.onChainConfigChanged(switched); err != nil {
			return err
		}
	}

	if err := c.svc.Accounts.SwitchAccountByChainID(chainID); err != nil {
		return err
	}
	cur, err := c.svc.Accounts.CurrentAccount()
	if err != nil {
		return errInternal("no current account after switch: %v", err)
	}
	if err := c.svc.Histories.SwitchAccount(cur.Address); err != nil {
		return err
	}

	c.svc.Sessions.Broadcast(session.EventAccountsChanged, c.accountAddresses())
	return nil
}

// RemoveAccount deletes the account with the given address.
func (c *Controller) RemoveAccount(ctx context.Context, address string) error {
	if !common.IsHexAddress(address) {
		return errInvalidParams("invalid address %q", address)
	}
	return c.svc.Accounts.RemoveAccountByAddress(common.HexToAddress(address))
}

// --- user operation construction ---

// CreateDeployUserOp builds the unsigned operation that deploys the owner's
// smart account on the active chain.
func (c *Controller) CreateDeployUserOp(ctx context.Context) (*userop.Wire, error) {
	owner, err := c.svc.Keyring.Owner()
	if err != nil {
		return nil, errInternal("cannot build a deploy operation before an owner exists: %v", err)
	}
	op, err := c.svc.SDK.CreateUnsignedDeployWalletUserOp(ctx, owner.Address)
	if err != nil {
		return nil, err
	}
	return userop.Format(op), nil
}

// CreateTxUserOp builds an unsigned operation wrapping txs for the current
// account.
func (c *Controller) CreateTxUserOp(ctx context.Context, txs []CallParam) (*userop.Wire, error) {
	cur, err := c.svc.Accounts.CurrentAccount()
	if err != nil {
		return nil, errInternal("no current account: %v", err)
	}
	calls, err := deformatCalls(txs)
	if err != nil {
		return nil, errInvalidParams("%v", err)
	}
	op, err := c.svc.SDK.CreateUserOpFromTxs(ctx, cur.Address, calls)
	if err != nil {
		return nil, err
	}
	return userop.Format(op), nil
}

// DecodeUserOp decodes the operation's calldata into its inner calls.
func (c *Controller) DecodeUserOp(ctx context.Context, w *userop.Wire) ([]CallParam, error) {
	op, err := w.Deformat()
	if err != nil {
		return nil, errInvalidParams("%v", err)
	}
	calls, err := c.svc.SDK.GetDecodedUserOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	return formatCalls(calls), nil
}

// EstimateGas fills the operation's gas fields from a bundler estimate.
func (c *Controller) EstimateGas(ctx context.Context, w *userop.Wire) (*userop.Wire, error) {
	op, err := w.Deformat()
	if err != nil {
		return nil, errInvalidParams("%v", err)
	}
	estimated, err := c.svc.SDK.EstimateGas(ctx, op, false)
	if err != nil {
		return nil, err
	}
	return userop.Format(estimated), nil
}

// PackResult is the boundary form of a packed operation plus the required
// top-up.
type PackResult struct {
	UserOp        *userop.Wire `json:"userOp"`
	MissingAmount string       `json:"missingAmount"`
	NeedDeposit   bool         `json:"needDeposit"`
}

// PackUserOp finalizes the operation for the given transfer amount and
// reports how much the account is missing to cover amount plus gas.
func (c *Controller) PackUserOp(ctx context.Context, w *userop.Wire, amount string) (*PackResult, error) {
	op, err := w.Deformat()
	if err != nil {
		return nil, errInvalidParams("%v", err)
	}
	amt, err := hexutil.DecodeBig(amount)
	if err != nil {
		return nil, errInvalidParams("invalid amount: %v", err)
	}
	recharge, err := c.svc.SDK.GetRechargeAmountForUserOp(ctx, op, amt)
	if err != nil {
		return nil, err
	}
	return &PackResult{
		UserOp:        userop.Format(recharge.Op),
		MissingAmount: hexutil.EncodeBig(recharge.MissingAmount),
		NeedDeposit:   recharge.NeedDeposit,
	}, nil
}

// --- ENS ---

// ENSInfo is the composed result of the two independent name lookups.
type ENSInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Avatar  string `json:"avatar,omitempty"`
}

// GetENSInfoByName resolves name to an address and avatar. Lookup failures
// propagate from the chain client untouched.
func (c *Controller) GetENSInfoByName(ctx context.Context, name string) (*ENSInfo, error) {
	address, err := c.svc.Client.GetENSAddressByName(ctx, name)
	if err != nil {
		return nil, err
	}
	avatar, err := c.svc.Client.GetENSAvatarByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return &ENSInfo{Name: name, Address: address.Hex(), Avatar: avatar}, nil
}

// --- internal routines ---

// onChainConfigChanged applies the side effects of the active chain's
// identity or configuration changing: reset the SDK context, re-initialize
// the raw chain client, and tell every session. Callers never reset the
// SDK or client directly.
func (c *Controller) onChainConfigChanged(cfg *chain.Config) error {
	if cfg == nil {
		return errInternal("no chain config resolves for the active chain")
	}
	if err := c.svc.SDK.ResetSDK(cfg); err != nil {
		return err
	}
	if err := c.svc.Client.Init(cfg); err != nil {
		return err
	}
	c.svc.Sessions.Broadcast(session.EventChainChanged, hexutil.EncodeUint64(cfg.ID))
	c.log.WithField("chainId", cfg.ID).Info("active chain changed")
	return nil
}

// ensureUnlocked gates signing operations: proceed with an already-unlocked
// keyring, or park behind an unlock approval until the user provides the
// password.
func (c *Controller) ensureUnlocked(ctx context.Context, origin string) error {
	c.svc.Keyring.TryUnlock()
	if !c.svc.Keyring.Locked() {
		return nil
	}

	_, wait, err := c.svc.Approvals.Create(approval.TypeUnlock, origin, nil)
	if err != nil {
		return errInternal("cannot request unlock: %v", err)
	}
	data, err := wait(ctx)
	if err != nil {
		if errors.Is(err, approval.ErrRejected) {
			return errUserRejected("%v", err)
		}
		return err
	}

	password, _ := data["password"].(string)
	if err := c.svc.Keyring.Unlock(password); err != nil {
		return err
	}
	c.log.Info("wallet unlocked")
	return nil
}

// accountAddresses is the accountsChanged payload: the current account's
// address, or an empty list when none exists.
func (c *Controller) accountAddresses() []string {
	cur, err := c.svc.Accounts.CurrentAccount()
	if err != nil {
		return []string{}
	}
	return []string{cur.Address.Hex()}
}

func deformatCalls(params []CallParam) ([]Call, error) {
	calls := make([]Call, len(params))
	for i, p := range params {
		if !common.IsHexAddress(p.To) {
			return nil, fmt.Errorf("tx %d: invalid to address %q", i, p.To)
		}
		calls[i].To = common.HexToAddress(p.To)
		if p.Value != "" {
			v, err := hexutil.DecodeBig(p.Value)
			if err != nil {
				return nil, fmt.Errorf("tx %d: invalid value: %w", i, err)
			}
			calls[i].Value = v
		}
		if p.Data != "" {
			d, err := hexutil.Decode(p.Data)
			if err != nil {
				return nil, fmt.Errorf("tx %d: invalid data: %w", i, err)
			}
			calls[i].Data = d
		}
	}
	return calls, nil
}

func formatCalls(calls []Call) []CallParam {
	params := make([]CallParam, len(calls))
	for i, call := range calls {
		params[i].To = call.To.Hex()
		if call.Value != nil {
			params[i].Value = hexutil.EncodeBig(call.Value)
		}
		if len(call.Data) > 0 {
			params[i].Data = hexutil.Encode(call.Data)
		}
	}
	return params
}
