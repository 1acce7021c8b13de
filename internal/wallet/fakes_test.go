package wallet

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ShuqiCH3N/Elytro/internal/account"
	"github.com/ShuqiCH3N/Elytro/internal/approval"
	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/history"
	"github.com/ShuqiCH3N/Elytro/internal/keyring"
	"github.com/ShuqiCH3N/Elytro/internal/session"
	"github.com/ShuqiCH3N/Elytro/internal/testutil"
	"github.com/ShuqiCH3N/Elytro/internal/userop"
)

// fakeKeyring emulates the keystore-backed keyring without scrypt cost.
type fakeKeyring struct {
	owner    *keyring.Owner
	password string
	cached   string // session credential for TryUnlock
	locked   bool
}

func (k *fakeKeyring) TryUnlock() {
	if k.owner != nil && k.cached != "" && k.cached == k.password {
		k.locked = false
	}
}

func (k *fakeKeyring) Locked() bool { return k.locked }

func (k *fakeKeyring) Lock() {
	k.locked = true
	k.cached = ""
}

func (k *fakeKeyring) Unlock(password string) error {
	if k.owner == nil {
		return keyring.ErrNoOwner
	}
	if password != k.password {
		return keyring.ErrInvalidPassword
	}
	k.locked = false
	k.cached = password
	return nil
}

func (k *fakeKeyring) CreateNewOwner(password string) (keyring.Owner, error) {
	if k.owner != nil {
		return keyring.Owner{}, keyring.ErrOwnerExists
	}
	k.owner = &keyring.Owner{Address: common.HexToAddress("0x9999999999999999999999999999999999999999")}
	k.password = password
	k.cached = password
	k.locked = false
	return *k.owner, nil
}

func (k *fakeKeyring) Owner() (keyring.Owner, error) {
	if k.owner == nil {
		return keyring.Owner{}, keyring.ErrNoOwner
	}
	return *k.owner, nil
}

// fakeSDK records calls and answers with canned data.
type fakeSDK struct {
	resetConfigs []*chain.Config
	deployed     bool
	decoded      []Call
	sendErr      error
	lastSent     *userop.UserOperation
	lastSigned   *userop.UserOperation
}

func (s *fakeSDK) ResetSDK(cfg *chain.Config) error {
	s.resetConfigs = append(s.resetConfigs, cfg)
	return nil
}

func (s *fakeSDK) SignUserOperation(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error) {
	signed := op.Copy()
	signed.Signature = []byte{0x01, 0x02}
	s.lastSigned = signed
	return signed, nil
}

func (s *fakeSDK) SendUserOperation(ctx context.Context, op *userop.UserOperation) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.lastSent = op
	return "0xuserophash", nil
}

func (s *fakeSDK) SignMessage(ctx context.Context, message string, address common.Address) (string, error) {
	return fmt.Sprintf("sig(%s,%s)", message, address.Hex()), nil
}

func (s *fakeSDK) IsSmartAccountDeployed(ctx context.Context, address common.Address) (bool, error) {
	return s.deployed, nil
}

func (s *fakeSDK) CreateUnsignedDeployWalletUserOp(ctx context.Context, owner common.Address) (*userop.UserOperation, error) {
	return &userop.UserOperation{
		Sender:   owner,
		Nonce:    big.NewInt(0),
		InitCode: []byte{0x01},
	}, nil
}

func (s *fakeSDK) CreateUserOpFromTxs(ctx context.Context, address common.Address, txs []Call) (*userop.UserOperation, error) {
	return &userop.UserOperation{
		Sender:   address,
		Nonce:    big.NewInt(1),
		CallData: []byte{0xca},
	}, nil
}

func (s *fakeSDK) GetDecodedUserOperation(ctx context.Context, op *userop.UserOperation) ([]Call, error) {
	return s.decoded, nil
}

func (s *fakeSDK) EstimateGas(ctx context.Context, op *userop.UserOperation, force bool) (*userop.UserOperation, error) {
	estimated := op.Copy()
	estimated.CallGasLimit = big.NewInt(200000)
	estimated.VerificationGasLimit = big.NewInt(1000000)
	estimated.PreVerificationGas = big.NewInt(50000)
	return estimated, nil
}

func (s *fakeSDK) GetRechargeAmountForUserOp(ctx context.Context, op *userop.UserOperation, amount *big.Int) (*Recharge, error) {
	return &Recharge{
		Op:            op.Copy(),
		MissingAmount: new(big.Int).Add(amount, big.NewInt(1000)),
		NeedDeposit:   true,
	}, nil
}

// fakeChainClient records Init calls and serves canned lookups.
type fakeChainClient struct {
	initConfigs []*chain.Config
	balance     *big.Int
	ensAddr     common.Address
	ensAvatar   string
	ensErr      error
}

func (c *fakeChainClient) Init(cfg *chain.Config) error {
	c.initConfigs = append(c.initConfigs, cfg)
	return nil
}

func (c *fakeChainClient) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	if c.balance == nil {
		return big.NewInt(0), nil
	}
	return c.balance, nil
}

func (c *fakeChainClient) GetENSAddressByName(ctx context.Context, name string) (common.Address, error) {
	if c.ensErr != nil {
		return common.Address{}, c.ensErr
	}
	return c.ensAddr, nil
}

func (c *fakeChainClient) GetENSAvatarByName(ctx context.Context, name string) (string, error) {
	if c.ensErr != nil {
		return "", c.ensErr
	}
	return c.ensAvatar, nil
}

type fixture struct {
	ctrl     *Controller
	keyring  *fakeKeyring
	sdk      *fakeSDK
	client   *fakeChainClient
	chains   *chain.Service
	accounts *account.Manager
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := testutil.TempDir(t)

	chains, err := chain.NewService([]*chain.Config{
		{ID: 1, DisplayName: "Ethereum Mainnet", RPCURLs: []string{"https://eth.example"}},
		{ID: 10, DisplayName: "Optimism", RPCURLs: []string{"https://op.example"}},
		{ID: 137, DisplayName: "Polygon", RPCURLs: []string{"https://polygon.example"}},
	})
	require.NoError(t, err)

	accounts, err := account.NewManager(dir)
	require.NoError(t, err)

	store, err := history.NewFileStore(dir)
	require.NoError(t, err)

	f := &fixture{
		keyring:  &fakeKeyring{locked: true},
		sdk:      &fakeSDK{},
		client:   &fakeChainClient{},
		chains:   chains,
		accounts: accounts,
		sessions: session.NewManager(),
	}
	f.ctrl = NewController(Services{
		Keyring:     f.keyring,
		Approvals:   approval.NewService(),
		Connections: session.NewConnections(),
		Sessions:    f.sessions,
		Chains:      chains,
		Accounts:    accounts,
		Histories:   history.NewManager(store),
		SDK:         f.sdk,
		Client:      f.client,
	})
	return f
}

// withOwner creates the owner (unlocked) and an account on chain 1.
func (f *fixture) withOwner(t *testing.T) keyring.Owner {
	t.Helper()
	owner, err := f.ctrl.CreateNewOwner(context.Background(), "testpassword")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.CreateAccount(context.Background(), 1))
	return owner
}
