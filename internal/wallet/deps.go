package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/keyring"
	"github.com/ShuqiCH3N/Elytro/internal/userop"
)

// External collaborator contracts the controller consumes. They are
// interfaces so controller-level tests run against fakes; the real
// implementations live in internal/keyring, internal/sdk and
// internal/chain.

// Keyring owns lock state and the owner signing key.
type Keyring interface {
	TryUnlock()
	Locked() bool
	Lock()
	Unlock(password string) error
	CreateNewOwner(password string) (keyring.Owner, error)
	Owner() (keyring.Owner, error)
}

// Call is one inner transaction of a user operation.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// CallParam is the boundary form of Call.
type CallParam struct {
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

// Recharge is the result of packing a user operation against the account's
// balance: the adjusted operation plus the amount the account is short.
type Recharge struct {
	Op            *userop.UserOperation
	MissingAmount *big.Int
	NeedDeposit   bool
}

// SDK builds, signs, estimates and submits account-abstraction user
// operations against the active chain.
type SDK interface {
	ResetSDK(cfg *chain.Config) error
	SignUserOperation(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error)
	SendUserOperation(ctx context.Context, op *userop.UserOperation) (string, error)
	SignMessage(ctx context.Context, message string, address common.Address) (string, error)
	IsSmartAccountDeployed(ctx context.Context, address common.Address) (bool, error)
	CreateUnsignedDeployWalletUserOp(ctx context.Context, owner common.Address) (*userop.UserOperation, error)
	CreateUserOpFromTxs(ctx context.Context, address common.Address, txs []Call) (*userop.UserOperation, error)
	GetDecodedUserOperation(ctx context.Context, op *userop.UserOperation) ([]Call, error)
	EstimateGas(ctx context.Context, op *userop.UserOperation, force bool) (*userop.UserOperation, error)
	GetRechargeAmountForUserOp(ctx context.Context, op *userop.UserOperation, amount *big.Int) (*Recharge, error)
}

// ChainClient is the raw RPC connection for balance and name lookups. It
// is re-initialized by the controller's chain-changed routine.
type ChainClient interface {
	Init(cfg *chain.Config) error
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	GetENSAddressByName(ctx context.Context, name string) (common.Address, error)
	GetENSAvatarByName(ctx context.Context, name string) (string, error)
}
