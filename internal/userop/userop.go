package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOperation is the internal form of an EIP-4337 operation. Numeric
// fields are big integers; byte fields are raw bytes.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// Wire is the boundary form of a user operation. Every numeric field is a
// 0x-prefixed hex string so the structure survives JSON transports that
// cannot carry big integers.
type Wire struct {
	Sender               string `json:"sender"`
	Nonce                string `json:"nonce"`
	InitCode             string `json:"initCode"`
	CallData             string `json:"callData"`
	CallGasLimit         string `json:"callGasLimit"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	PaymasterAndData     string `json:"paymasterAndData"`
	Signature            string `json:"signature"`
}

// Copy returns a deep copy of the operation.
func (op *UserOperation) Copy() *UserOperation {
	if op == nil {
		return nil
	}
	dup := &UserOperation{
		Sender:           op.Sender,
		InitCode:         append([]byte(nil), op.InitCode...),
		CallData:         append([]byte(nil), op.CallData...),
		PaymasterAndData: append([]byte(nil), op.PaymasterAndData...),
		Signature:        append([]byte(nil), op.Signature...),
	}
	for dst, src := range map[**big.Int]*big.Int{
		&dup.Nonce:                op.Nonce,
		&dup.CallGasLimit:         op.CallGasLimit,
		&dup.VerificationGasLimit: op.VerificationGasLimit,
		&dup.PreVerificationGas:   op.PreVerificationGas,
		&dup.MaxFeePerGas:         op.MaxFeePerGas,
		&dup.MaxPriorityFeePerGas: op.MaxPriorityFeePerGas,
	} {
		if src != nil {
			*dst = new(big.Int).Set(src)
		}
	}
	return dup
}

// GasCost returns the worst-case wei cost of the operation:
// (callGasLimit + verificationGasLimit + preVerificationGas) * maxFeePerGas.
// Missing fields count as zero.
func (op *UserOperation) GasCost() *big.Int {
	total := new(big.Int)
	for _, g := range []*big.Int{op.CallGasLimit, op.VerificationGasLimit, op.PreVerificationGas} {
		if g != nil {
			total.Add(total, g)
		}
	}
	if op.MaxFeePerGas != nil {
		total.Mul(total, op.MaxFeePerGas)
	}
	return total
}

func encodeBig(v *big.Int) string {
	if v == nil {
		return ""
	}
	return hexutil.EncodeBig(v)
}

func encodeBytes(b []byte) string {
	return hexutil.Encode(b)
}
