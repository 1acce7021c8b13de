package wallet

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// hashTypedData computes the signing hash for a typed-data payload. Two
// input shapes are supported: a serialized EIP-712 JSON document, hashed
// with the v4 domain-separator scheme, and the legacy flat list of
// {type, name, value} entries, hashed with the v1 scheme.
func hashTypedData(input any) ([]byte, error) {
	switch v := input.(type) {
	case string:
		var td apitypes.TypedData
		if err := json.Unmarshal([]byte(v), &td); err != nil {
			return nil, fmt.Errorf("failed to parse typed data: %w", err)
		}
		hash, _, err := apitypes.TypedDataAndHash(td)
		if err != nil {
			return nil, err
		}
		if len(hash) == 0 {
			return nil, fmt.Errorf("typed data produced no hash")
		}
		return hash, nil
	case []any:
		return hashTypedDataV1(v)
	default:
		return nil, fmt.Errorf("unsupported typed data shape %T", input)
	}
}

// hashTypedDataV1 implements the pre-712 scheme:
// keccak256(keccak256(schema), keccak256(values)) where the schema packs
// "type name" per entry. Each piece is length-prefixed so the entry lists
// ["ab","c"] and ["a","bc"] hash differently.
func hashTypedDataV1(entries []any) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("typed data list is empty")
	}

	var schema, values []byte
	for i, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("typed data entry %d is not an object", i)
		}
		typ, ok := entry["type"].(string)
		if !ok {
			return nil, fmt.Errorf("typed data entry %d has no type", i)
		}
		name, ok := entry["name"].(string)
		if !ok {
			return nil, fmt.Errorf("typed data entry %d has no name", i)
		}
		value, ok := entry["value"]
		if !ok {
			return nil, fmt.Errorf("typed data entry %d has no value", i)
		}
		schema = appendPacked(schema, typ+" "+name)
		values = appendPacked(values, fmt.Sprintf("%v", value))
	}
	return crypto.Keccak256(crypto.Keccak256(schema), crypto.Keccak256(values)), nil
}

// appendPacked appends s with a big-endian length prefix.
func appendPacked(buf []byte, s string) []byte {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(s)))
	return append(append(buf, prefix[:]...), s...)
}
