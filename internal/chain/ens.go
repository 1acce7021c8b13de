package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ENS registry, deployed at the same address on mainnet and testnets.
var ensRegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

// ENS function selectors
var (
	// resolver(bytes32)
	resolverSelector = common.Hex2Bytes("0178b8bf")
	// addr(bytes32)
	addrSelector = common.Hex2Bytes("3b3b57de")
	// text(bytes32,string)
	textSelector = common.Hex2Bytes("59d1d43c")
)

// Namehash computes the EIP-137 hash of an ENS name.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}

// GetENSAddressByName resolves an ENS name to an address.
func (c *Client) GetENSAddressByName(ctx context.Context, name string) (common.Address, error) {
	node := Namehash(name)

	resolver, err := c.ensResolver(ctx, node)
	if err != nil {
		return common.Address{}, err
	}

	callData := make([]byte, 36)
	copy(callData[:4], addrSelector)
	copy(callData[4:], node.Bytes())

	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: callData})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	if len(result) < 32 {
		return common.Address{}, fmt.Errorf("no address record for %s", name)
	}
	return common.BytesToAddress(result[12:32]), nil
}

// GetENSAvatarByName returns the avatar text record of an ENS name, or ""
// when no record is set.
func (c *Client) GetENSAvatarByName(ctx context.Context, name string) (string, error) {
	node := Namehash(name)

	resolver, err := c.ensResolver(ctx, node)
	if err != nil {
		return "", err
	}

	result, err := c.CallContract(ctx, ethereum.CallMsg{
		To:   &resolver,
		Data: encodeTextCall(node, "avatar"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch avatar for %s: %w", name, err)
	}
	return decodeString(result), nil
}

// ensResolver looks up the resolver contract for node in the registry.
func (c *Client) ensResolver(ctx context.Context, node common.Hash) (common.Address, error) {
	callData := make([]byte, 36)
	copy(callData[:4], resolverSelector)
	copy(callData[4:], node.Bytes())

	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &ensRegistryAddress, Data: callData})
	if err != nil {
		return common.Address{}, fmt.Errorf("ENS registry lookup failed: %w", err)
	}
	if len(result) < 32 {
		return common.Address{}, fmt.Errorf("no resolver set")
	}
	resolver := common.BytesToAddress(result[12:32])
	if resolver == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no resolver set")
	}
	return resolver, nil
}

// encodeTextCall ABI-encodes text(node, key).
func encodeTextCall(node common.Hash, key string) []byte {
	keyBytes := []byte(key)
	padded := len(keyBytes)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}

	data := make([]byte, 0, 4+32*3+padded)
	data = append(data, textSelector...)
	data = append(data, node.Bytes()...)
	// Offset of the dynamic string argument: 0x40
	data = append(data, common.LeftPadBytes(big.NewInt(64).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(int64(len(keyBytes))).Bytes(), 32)...)
	data = append(data, common.RightPadBytes(keyBytes, padded)...)
	return data
}

// decodeString decodes an ABI-encoded string return value.
func decodeString(data []byte) string {
	if len(data) < 64 {
		return strings.TrimRight(string(data), "\x00")
	}

	// Standard ABI encoding: offset (32 bytes) + length (32 bytes) + data
	length := new(big.Int).SetBytes(data[32:64]).Int64()
	if length == 0 || int(length) > len(data)-64 {
		return ""
	}
	return strings.TrimRight(string(data[64:64+length]), "\x00")
}
