package chain

import "math/big"

// Config holds configuration for an EVM chain supporting account
// abstraction. ID is the canonical chain id and the key used everywhere;
// exactly one configured chain is "current" at a time (see Service).
type Config struct {
	ID             uint64   `json:"id" yaml:"chain_id"`
	DisplayName    string   `json:"displayName" yaml:"display_name"`
	RPCURLs        []string `json:"rpcUrls" yaml:"rpc_urls"`
	BundlerURL     string   `json:"bundlerUrl" yaml:"bundler_url"`
	EntryPoint     string   `json:"entryPoint" yaml:"entry_point"`
	WalletFactory  string   `json:"walletFactory" yaml:"wallet_factory"`
	ExplorerURL    string   `json:"explorerUrl" yaml:"explorer_url"`
	NativeCurrency string   `json:"nativeCurrency" yaml:"native_currency"`
	IsTestnet      bool     `json:"isTestnet" yaml:"is_testnet"`
}

// ChainIDBig returns the chain id as a big integer for signing and RPC
// validation.
func (c *Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ID)
}

// Copy returns a deep copy so callers cannot mutate service-owned state.
func (c *Config) Copy() *Config {
	dup := *c
	dup.RPCURLs = append([]string(nil), c.RPCURLs...)
	return &dup
}

// v0.6 EntryPoint, deployed at the same address on all supported chains.
const defaultEntryPoint = "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"

// DefaultChains returns the built-in chain configurations.
func DefaultChains() []*Config {
	return []*Config{
		{
			ID:             1,
			DisplayName:    "Ethereum Mainnet",
			RPCURLs:        []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"},
			BundlerURL:     "https://bundler.elytro.io/eth",
			EntryPoint:     defaultEntryPoint,
			ExplorerURL:    "https://etherscan.io",
			NativeCurrency: "ETH",
		},
		{
			ID:             10,
			DisplayName:    "Optimism",
			RPCURLs:        []string{"https://mainnet.optimism.io", "https://optimism.llamarpc.com"},
			BundlerURL:     "https://bundler.elytro.io/op",
			EntryPoint:     defaultEntryPoint,
			ExplorerURL:    "https://optimistic.etherscan.io",
			NativeCurrency: "ETH",
		},
		{
			ID:             8453,
			DisplayName:    "Base",
			RPCURLs:        []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			BundlerURL:     "https://bundler.elytro.io/base",
			EntryPoint:     defaultEntryPoint,
			ExplorerURL:    "https://basescan.org",
			NativeCurrency: "ETH",
		},
		{
			ID:             42161,
			DisplayName:    "Arbitrum One",
			RPCURLs:        []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"},
			BundlerURL:     "https://bundler.elytro.io/arb",
			EntryPoint:     defaultEntryPoint,
			ExplorerURL:    "https://arbiscan.io",
			NativeCurrency: "ETH",
		},
		{
			ID:             137,
			DisplayName:    "Polygon",
			RPCURLs:        []string{"https://polygon-rpc.com", "https://polygon.llamarpc.com"},
			BundlerURL:     "https://bundler.elytro.io/polygon",
			EntryPoint:     defaultEntryPoint,
			ExplorerURL:    "https://polygonscan.com",
			NativeCurrency: "MATIC",
		},
		{
			ID:             11155111,
			DisplayName:    "Sepolia Testnet",
			RPCURLs:        []string{"https://rpc.sepolia.org", "https://sepolia.drpc.org"},
			BundlerURL:     "https://bundler.elytro.io/sepolia",
			EntryPoint:     defaultEntryPoint,
			ExplorerURL:    "https://sepolia.etherscan.io",
			NativeCurrency: "ETH",
			IsTestnet:      true,
		},
	}
}
