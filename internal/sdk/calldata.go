package sdk

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ShuqiCH3N/Elytro/internal/wallet"
)

// Smart-account calldata shapes. A single call is wrapped in
// execute(address,uint256,bytes); multiple calls in
// executeBatch(address[],uint256[],bytes[]).
var (
	executeSelector       = crypto.Keccak256([]byte("execute(address,uint256,bytes)"))[:4]
	executeBatchSelector  = crypto.Keccak256([]byte("executeBatch(address[],uint256[],bytes[])"))[:4]
	createAccountSelector = crypto.Keccak256([]byte("createAccount(address,uint256)"))[:4]
	getNonceSelector      = crypto.Keccak256([]byte("getNonce(address,uint192)"))[:4]

	executeArgs       = mustArguments("address", "uint256", "bytes")
	executeBatchArgs  = mustArguments("address[]", "uint256[]", "bytes[]")
	createAccountArgs = mustArguments("address", "uint256")
	getNonceArgs      = mustArguments("address", "uint192")
)

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %q: %v", t, err))
		}
		args[i] = abi.Argument{Type: typ}
	}
	return args
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// encodeCalls wraps calls into smart-account calldata.
func encodeCalls(calls []wallet.Call) ([]byte, error) {
	switch len(calls) {
	case 0:
		return nil, fmt.Errorf("no calls to encode")
	case 1:
		packed, err := executeArgs.Pack(calls[0].To, bigOrZero(calls[0].Value), calls[0].Data)
		if err != nil {
			return nil, fmt.Errorf("encode execute: %w", err)
		}
		return append(append([]byte{}, executeSelector...), packed...), nil
	default:
		tos := make([]common.Address, len(calls))
		values := make([]*big.Int, len(calls))
		datas := make([][]byte, len(calls))
		for i, call := range calls {
			tos[i] = call.To
			values[i] = bigOrZero(call.Value)
			datas[i] = call.Data
		}
		packed, err := executeBatchArgs.Pack(tos, values, datas)
		if err != nil {
			return nil, fmt.Errorf("encode executeBatch: %w", err)
		}
		return append(append([]byte{}, executeBatchSelector...), packed...), nil
	}
}

// decodeCalls unwraps smart-account calldata back into its inner calls.
// Empty calldata (a pure deploy operation) decodes to no calls.
func decodeCalls(callData []byte) ([]wallet.Call, error) {
	if len(callData) == 0 {
		return []wallet.Call{}, nil
	}
	if len(callData) < 4 {
		return nil, fmt.Errorf("calldata too short: %d bytes", len(callData))
	}

	selector, payload := callData[:4], callData[4:]
	switch {
	case bytes.Equal(selector, executeSelector):
		vals, err := executeArgs.Unpack(payload)
		if err != nil {
			return nil, fmt.Errorf("decode execute: %w", err)
		}
		return []wallet.Call{{
			To:    vals[0].(common.Address),
			Value: vals[1].(*big.Int),
			Data:  vals[2].([]byte),
		}}, nil
	case bytes.Equal(selector, executeBatchSelector):
		vals, err := executeBatchArgs.Unpack(payload)
		if err != nil {
			return nil, fmt.Errorf("decode executeBatch: %w", err)
		}
		tos := vals[0].([]common.Address)
		values := vals[1].([]*big.Int)
		datas := vals[2].([][]byte)
		if len(values) != len(tos) || len(datas) != len(tos) {
			return nil, fmt.Errorf("decode executeBatch: mismatched array lengths")
		}
		calls := make([]wallet.Call, len(tos))
		for i := range tos {
			calls[i] = wallet.Call{To: tos[i], Value: values[i], Data: datas[i]}
		}
		return calls, nil
	default:
		return nil, fmt.Errorf("unrecognized calldata selector 0x%x", selector)
	}
}

// buildInitCode packs the factory address and its createAccount call. The
// salt is the chain id, matching the counterfactual address derivation.
func buildInitCode(factory common.Address, owner common.Address, chainID uint64) ([]byte, error) {
	packed, err := createAccountArgs.Pack(owner, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, fmt.Errorf("encode createAccount: %w", err)
	}
	initCode := append([]byte{}, factory.Bytes()...)
	initCode = append(initCode, createAccountSelector...)
	return append(initCode, packed...), nil
}
