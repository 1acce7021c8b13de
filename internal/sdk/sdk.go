// Package sdk talks to the chain and the ERC-4337 bundler on behalf of the
// wallet controller: it builds, signs, estimates and submits user
// operations for the owner's smart account.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/ShuqiCH3N/Elytro/internal/account"
	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/keyring"
	"github.com/ShuqiCH3N/Elytro/internal/userop"
	"github.com/ShuqiCH3N/Elytro/internal/wallet"
)

var (
	ErrNotConfigured = errors.New("sdk: no chain configured")
	ErrNoRPC         = errors.New("sdk: no working rpc endpoint")
)

// Conservative fallbacks used when the bundler cannot produce an estimate.
// Deployment verification carries the account constructor, so it gets a far
// larger budget.
var (
	defaultCallGasLimit         = big.NewInt(200_000)
	defaultVerificationGasLimit = big.NewInt(1_000_000)
	defaultPreVerificationGas   = big.NewInt(50_000)
	deployVerificationGasLimit  = big.NewInt(3_000_000)
)

// Signer is the key custody surface the SDK needs. Satisfied by
// keyring.Keyring.
type Signer interface {
	SignPersonal(message []byte) ([]byte, error)
	Owner() (keyring.Owner, error)
}

// Service implements the controller's SDK surface against a live RPC node
// and bundler. ResetSDK rebinds it to a chain; until then every method
// fails with ErrNotConfigured.
type Service struct {
	mu      sync.RWMutex
	cfg     *chain.Config
	eth     *ethclient.Client
	bundler *rpc.Client

	signer Signer
	log    *logrus.Entry
}

func New(signer Signer) *Service {
	return &Service{
		signer: signer,
		log:    logrus.WithField("module", "sdk"),
	}
}

// ResetSDK rebinds the service to cfg: the first reachable RPC endpoint
// whose reported chain id matches, plus the chain's bundler.
func (s *Service) ResetSDK(cfg *chain.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	eth, err := dialVerified(ctx, cfg)
	if err != nil {
		return err
	}

	bundler, err := rpc.DialContext(ctx, cfg.BundlerURL)
	if err != nil {
		eth.Close()
		return fmt.Errorf("dial bundler %s: %w", cfg.BundlerURL, err)
	}

	s.mu.Lock()
	if s.eth != nil {
		s.eth.Close()
	}
	if s.bundler != nil {
		s.bundler.Close()
	}
	s.cfg = cfg.Copy()
	s.eth = eth
	s.bundler = bundler
	s.mu.Unlock()

	s.log.WithField("chainId", cfg.ID).Info("sdk bound to chain")
	return nil
}

// Close releases the RPC connections.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eth != nil {
		s.eth.Close()
		s.eth = nil
	}
	if s.bundler != nil {
		s.bundler.Close()
		s.bundler = nil
	}
	s.cfg = nil
}

const dialTimeout = 10 * time.Second

func dialVerified(ctx context.Context, cfg *chain.Config) (*ethclient.Client, error) {
	var lastErr error
	for _, url := range cfg.RPCURLs {
		eth, err := ethclient.DialContext(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		id, err := eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			lastErr = err
			continue
		}
		if id.Cmp(cfg.ChainIDBig()) != 0 {
			eth.Close()
			lastErr = fmt.Errorf("rpc %s reports chain %s, want %d", url, id, cfg.ID)
			continue
		}
		return eth, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRPC, lastErr)
	}
	return nil, ErrNoRPC
}

// state snapshots the bound connections under the read lock.
func (s *Service) state() (*chain.Config, *ethclient.Client, *rpc.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil || s.eth == nil || s.bundler == nil {
		return nil, nil, nil, ErrNotConfigured
	}
	return s.cfg, s.eth, s.bundler, nil
}

// SignUserOperation signs the operation's EntryPoint hash with the owner
// key. The hash is signed through the personal-message prefix, which is
// what the account contract's validation expects.
func (s *Service) SignUserOperation(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error) {
	cfg, _, _, err := s.state()
	if err != nil {
		return nil, err
	}
	hash, err := userOpHash(op, common.HexToAddress(cfg.EntryPoint), cfg.ChainIDBig())
	if err != nil {
		return nil, err
	}
	sig, err := s.signer.SignPersonal(hash.Bytes())
	if err != nil {
		return nil, err
	}
	signed := op.Copy()
	signed.Signature = sig
	return signed, nil
}

// SendUserOperation submits the operation to the bundler, signing it first
// when no signature is attached. Returns the user-operation hash the
// bundler acknowledged.
func (s *Service) SendUserOperation(ctx context.Context, op *userop.UserOperation) (string, error) {
	cfg, _, bundler, err := s.state()
	if err != nil {
		return "", err
	}
	if len(op.Signature) == 0 {
		op, err = s.SignUserOperation(ctx, op)
		if err != nil {
			return "", err
		}
	}
	var opHash string
	if err := bundler.CallContext(ctx, &opHash, "eth_sendUserOperation", userop.Format(op), cfg.EntryPoint); err != nil {
		return "", fmt.Errorf("eth_sendUserOperation: %w", err)
	}
	return opHash, nil
}

// SignMessage signs message with the owner key using the personal-message
// prefix and returns the hex signature. The address names the smart
// account the signature will be presented for.
func (s *Service) SignMessage(ctx context.Context, message string, address common.Address) (string, error) {
	var payload []byte
	if raw, err := hexutil.Decode(message); err == nil {
		payload = raw
	} else {
		payload = []byte(message)
	}
	sig, err := s.signer.SignPersonal(payload)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// IsSmartAccountDeployed reports whether address has contract code.
func (s *Service) IsSmartAccountDeployed(ctx context.Context, address common.Address) (bool, error) {
	_, eth, _, err := s.state()
	if err != nil {
		return false, err
	}
	code, err := eth.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", address.Hex(), err)
	}
	return len(code) > 0, nil
}

// CreateUnsignedDeployWalletUserOp builds the first operation for the
// owner's counterfactual account: initCode deploys it, calldata is empty.
func (s *Service) CreateUnsignedDeployWalletUserOp(ctx context.Context, owner common.Address) (*userop.UserOperation, error) {
	cfg, _, _, err := s.state()
	if err != nil {
		return nil, err
	}
	initCode, err := buildInitCode(common.HexToAddress(cfg.WalletFactory), owner, cfg.ID)
	if err != nil {
		return nil, err
	}
	return &userop.UserOperation{
		Sender:               account.DeriveAddress(owner, cfg.ID),
		Nonce:                new(big.Int),
		InitCode:             initCode,
		CallGasLimit:         new(big.Int).Set(defaultCallGasLimit),
		VerificationGasLimit: new(big.Int).Set(deployVerificationGasLimit),
		PreVerificationGas:   new(big.Int).Set(defaultPreVerificationGas),
	}, nil
}

// CreateUserOpFromTxs wraps txs into an unsigned operation for address. If
// the account is not deployed yet, initCode for a deploy-and-execute
// operation is attached.
func (s *Service) CreateUserOpFromTxs(ctx context.Context, address common.Address, txs []wallet.Call) (*userop.UserOperation, error) {
	cfg, _, _, err := s.state()
	if err != nil {
		return nil, err
	}
	callData, err := encodeCalls(txs)
	if err != nil {
		return nil, err
	}

	op := &userop.UserOperation{
		Sender:               address,
		CallData:             callData,
		CallGasLimit:         new(big.Int).Set(defaultCallGasLimit),
		VerificationGasLimit: new(big.Int).Set(defaultVerificationGasLimit),
		PreVerificationGas:   new(big.Int).Set(defaultPreVerificationGas),
	}

	deployed, err := s.IsSmartAccountDeployed(ctx, address)
	if err != nil {
		return nil, err
	}
	if deployed {
		nonce, err := s.accountNonce(ctx, address)
		if err != nil {
			return nil, err
		}
		op.Nonce = nonce
	} else {
		owner, err := s.signer.Owner()
		if err != nil {
			return nil, fmt.Errorf("undeployed account needs an owner for init code: %w", err)
		}
		initCode, err := buildInitCode(common.HexToAddress(cfg.WalletFactory), owner.Address, cfg.ID)
		if err != nil {
			return nil, err
		}
		op.Nonce = new(big.Int)
		op.InitCode = initCode
		op.VerificationGasLimit = new(big.Int).Set(deployVerificationGasLimit)
	}
	return op, nil
}

// GetDecodedUserOperation unwraps the operation's calldata into its inner
// calls.
func (s *Service) GetDecodedUserOperation(ctx context.Context, op *userop.UserOperation) ([]wallet.Call, error) {
	return decodeCalls(op.CallData)
}

// EstimateGas asks the bundler for gas limits and fills the fee fields from
// the chain head. When the bundler cannot estimate and force is false, the
// conservative defaults are used instead.
func (s *Service) EstimateGas(ctx context.Context, op *userop.UserOperation, force bool) (*userop.UserOperation, error) {
	cfg, _, bundler, err := s.state()
	if err != nil {
		return nil, err
	}
	estimated := op.Copy()

	wire := userop.Format(estimated)
	if wire.Signature == "" {
		wire.Signature = dummySignature
	}

	var res struct {
		CallGasLimit         *hexutil.Big `json:"callGasLimit"`
		VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
		PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	}
	estErr := bundler.CallContext(ctx, &res, "eth_estimateUserOperationGas", wire, cfg.EntryPoint)
	switch {
	case estErr == nil:
		if res.CallGasLimit != nil {
			estimated.CallGasLimit = res.CallGasLimit.ToInt()
		}
		if res.VerificationGasLimit != nil {
			estimated.VerificationGasLimit = res.VerificationGasLimit.ToInt()
		}
		if res.PreVerificationGas != nil {
			estimated.PreVerificationGas = res.PreVerificationGas.ToInt()
		}
	case force:
		return nil, fmt.Errorf("eth_estimateUserOperationGas: %w", estErr)
	default:
		s.log.WithError(estErr).Warn("bundler estimate unavailable, using defaults")
		estimated.CallGasLimit = new(big.Int).Set(defaultCallGasLimit)
		estimated.VerificationGasLimit = new(big.Int).Set(defaultVerificationGasLimit)
		estimated.PreVerificationGas = new(big.Int).Set(defaultPreVerificationGas)
	}

	if err := s.fillFees(ctx, estimated); err != nil {
		return nil, err
	}
	return estimated, nil
}

// GetRechargeAmountForUserOp reports how much the sender is missing to
// cover amount plus the operation's worst-case gas cost.
func (s *Service) GetRechargeAmountForUserOp(ctx context.Context, op *userop.UserOperation, amount *big.Int) (*wallet.Recharge, error) {
	_, eth, _, err := s.state()
	if err != nil {
		return nil, err
	}
	balance, err := eth.BalanceAt(ctx, op.Sender, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", op.Sender.Hex(), err)
	}

	required := new(big.Int).Add(bigOrZero(amount), op.GasCost())
	missing := new(big.Int).Sub(required, balance)
	if missing.Sign() <= 0 {
		return &wallet.Recharge{Op: op.Copy(), MissingAmount: new(big.Int), NeedDeposit: false}, nil
	}
	return &wallet.Recharge{Op: op.Copy(), MissingAmount: missing, NeedDeposit: true}, nil
}

// accountNonce reads the sender's nonce from the EntryPoint's nonce
// manager (key 0).
func (s *Service) accountNonce(ctx context.Context, sender common.Address) (*big.Int, error) {
	cfg, eth, _, err := s.state()
	if err != nil {
		return nil, err
	}
	packed, err := getNonceArgs.Pack(sender, new(big.Int))
	if err != nil {
		return nil, fmt.Errorf("encode getNonce: %w", err)
	}
	entryPoint := common.HexToAddress(cfg.EntryPoint)
	msg := ethereum.CallMsg{
		To:   &entryPoint,
		Data: append(append([]byte{}, getNonceSelector...), packed...),
	}
	out, err := eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("getNonce: %w", err)
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("getNonce: short return (%d bytes)", len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// fillFees populates the fee fields that are still unset: tip from the
// node's suggestion, max fee as twice the head base fee plus the tip.
func (s *Service) fillFees(ctx context.Context, op *userop.UserOperation) error {
	if op.MaxFeePerGas != nil && op.MaxPriorityFeePerGas != nil {
		return nil
	}
	_, eth, _, err := s.state()
	if err != nil {
		return err
	}

	tip, err := eth.SuggestGasTipCap(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("chain head: %w", err)
	}

	if op.MaxPriorityFeePerGas == nil {
		op.MaxPriorityFeePerGas = tip
	}
	if op.MaxFeePerGas == nil {
		maxFee := new(big.Int).Set(op.MaxPriorityFeePerGas)
		if head.BaseFee != nil {
			maxFee.Add(maxFee, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		}
		op.MaxFeePerGas = maxFee
	}
	return nil
}

// dummySignature is a structurally valid 65-byte signature bundlers accept
// for estimation.
var dummySignature = func() string {
	sig := make([]byte, 65)
	for i := range sig[:64] {
		sig[i] = 0x01
	}
	sig[64] = 27
	return hexutil.Encode(sig)
}()
