package sdk

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ShuqiCH3N/Elytro/internal/userop"
)

var (
	userOpHashArgs = mustArguments(
		"address", // sender
		"uint256", // nonce
		"bytes32", // keccak(initCode)
		"bytes32", // keccak(callData)
		"uint256", // callGasLimit
		"uint256", // verificationGasLimit
		"uint256", // preVerificationGas
		"uint256", // maxFeePerGas
		"uint256", // maxPriorityFeePerGas
		"bytes32", // keccak(paymasterAndData)
	)
	userOpOuterArgs = mustArguments("bytes32", "address", "uint256")
)

// userOpHash computes the EntryPoint user-operation hash:
// keccak(abi.encode(keccak(packedOp), entryPoint, chainID)). This is the
// digest the account contract verifies, so signing must cover exactly it.
func userOpHash(op *userop.UserOperation, entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	inner, err := userOpHashArgs.Pack(
		op.Sender,
		bigOrZero(op.Nonce),
		crypto.Keccak256Hash(op.InitCode),
		crypto.Keccak256Hash(op.CallData),
		bigOrZero(op.CallGasLimit),
		bigOrZero(op.VerificationGasLimit),
		bigOrZero(op.PreVerificationGas),
		bigOrZero(op.MaxFeePerGas),
		bigOrZero(op.MaxPriorityFeePerGas),
		crypto.Keccak256Hash(op.PaymasterAndData),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack user operation: %w", err)
	}

	outer, err := userOpOuterArgs.Pack(crypto.Keccak256Hash(inner), entryPoint, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack user operation envelope: %w", err)
	}
	return crypto.Keccak256Hash(outer), nil
}
