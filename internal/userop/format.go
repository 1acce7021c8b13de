package userop

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrInvalidNumeric = errors.New("invalid numeric field")
	ErrInvalidBytes   = errors.New("invalid bytes field")
	ErrMissingFees    = errors.New("missing gas fee field")
)

// Deformat and Format convert between the wire form and the internal form.
// Only fields on an explicit allow-list are treated as big integers: byte
// payloads (calldata, signatures) are hex strings too and a blanket
// "looks like hex, parse as integer" rule would mangle them.

// Format renders every numeric field of op as a 0x-hex string.
func Format(op *UserOperation) *Wire {
	return &Wire{
		Sender:               op.Sender.Hex(),
		Nonce:                encodeBig(op.Nonce),
		InitCode:             encodeBytes(op.InitCode),
		CallData:             encodeBytes(op.CallData),
		CallGasLimit:         encodeBig(op.CallGasLimit),
		VerificationGasLimit: encodeBig(op.VerificationGasLimit),
		PreVerificationGas:   encodeBig(op.PreVerificationGas),
		MaxFeePerGas:         encodeBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: encodeBig(op.MaxPriorityFeePerGas),
		PaymasterAndData:     encodeBytes(op.PaymasterAndData),
		Signature:            encodeBytes(op.Signature),
	}
}

// Deformat parses the wire form back into big-integer fields. Fee fields
// are optional here; signing does not require them to be set.
func (w *Wire) Deformat() (*UserOperation, error) {
	op := &UserOperation{Sender: common.HexToAddress(w.Sender)}

	numeric := []struct {
		name     string
		raw      string
		dst      **big.Int
		required bool
	}{
		{"nonce", w.Nonce, &op.Nonce, true},
		{"callGasLimit", w.CallGasLimit, &op.CallGasLimit, false},
		{"verificationGasLimit", w.VerificationGasLimit, &op.VerificationGasLimit, false},
		{"preVerificationGas", w.PreVerificationGas, &op.PreVerificationGas, false},
		{"maxFeePerGas", w.MaxFeePerGas, &op.MaxFeePerGas, false},
		{"maxPriorityFeePerGas", w.MaxPriorityFeePerGas, &op.MaxPriorityFeePerGas, false},
	}
	for _, f := range numeric {
		if f.raw == "" {
			if f.required {
				return nil, fmt.Errorf("%w: %s is empty", ErrInvalidNumeric, f.name)
			}
			continue
		}
		v, err := hexutil.DecodeBig(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidNumeric, f.name, err)
		}
		*f.dst = v
	}

	raw := []struct {
		name string
		raw  string
		dst  *[]byte
	}{
		{"initCode", w.InitCode, &op.InitCode},
		{"callData", w.CallData, &op.CallData},
		{"paymasterAndData", w.PaymasterAndData, &op.PaymasterAndData},
		{"signature", w.Signature, &op.Signature},
	}
	for _, f := range raw {
		if f.raw == "" {
			continue
		}
		b, err := hexutil.Decode(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBytes, f.name, err)
		}
		*f.dst = b
	}

	return op, nil
}

// DeformatWithFees is the send-path variant: on top of Deformat it insists
// that maxFeePerGas and maxPriorityFeePerGas are present. These two fields
// are called out by name; no other numeric-looking field gets this
// treatment.
func (w *Wire) DeformatWithFees() (*UserOperation, error) {
	op, err := w.Deformat()
	if err != nil {
		return nil, err
	}
	if op.MaxFeePerGas == nil {
		return nil, fmt.Errorf("%w: maxFeePerGas", ErrMissingFees)
	}
	if op.MaxPriorityFeePerGas == nil {
		return nil, fmt.Errorf("%w: maxPriorityFeePerGas", ErrMissingFees)
	}
	return op, nil
}
