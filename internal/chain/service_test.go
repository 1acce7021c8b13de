package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigs() []*Config {
	return []*Config{
		{ID: 1, DisplayName: "Ethereum Mainnet", RPCURLs: []string{"https://eth.example"}},
		{ID: 137, DisplayName: "Polygon", RPCURLs: []string{"https://polygon.example"}},
	}
}

func TestNewService(t *testing.T) {
	t.Run("first config becomes current", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		cur := s.CurrentChain()
		require.NotNil(t, cur)
		assert.Equal(t, uint64(1), cur.ID)
		assert.Len(t, s.Chains(), 2)
	})

	t.Run("rejects empty config list", func(t *testing.T) {
		_, err := NewService(nil)
		assert.ErrorIs(t, err, ErrNoChains)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := NewService([]*Config{{ID: 1}, {ID: 1}})
		assert.ErrorIs(t, err, ErrChainExists)
	})
}

func TestSwitchChain(t *testing.T) {
	t.Run("switch changes the current chain", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		cfg, err := s.SwitchChain(137)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, uint64(137), cfg.ID)
		assert.Equal(t, uint64(137), s.CurrentChain().ID)
	})

	t.Run("switching to the current chain is a no-op", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		cfg, err := s.SwitchChain(1)
		require.NoError(t, err)
		assert.Nil(t, cfg)
		assert.Equal(t, uint64(1), s.CurrentChain().ID)
	})

	t.Run("unknown chain is an error", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		_, err = s.SwitchChain(999)
		assert.ErrorIs(t, err, ErrUnknownChain)
	})
}

func TestChainCRUD(t *testing.T) {
	t.Run("add then get", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		require.NoError(t, s.AddChain(&Config{ID: 10, DisplayName: "Optimism"}))
		got, err := s.Get(10)
		require.NoError(t, err)
		assert.Equal(t, "Optimism", got.DisplayName)

		assert.ErrorIs(t, s.AddChain(&Config{ID: 10}), ErrChainExists)
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		name := "Polygon PoS"
		require.NoError(t, s.UpdateChain(137, Update{DisplayName: &name}))

		got, err := s.Get(137)
		require.NoError(t, err)
		assert.Equal(t, "Polygon PoS", got.DisplayName)
		assert.Equal(t, []string{"https://polygon.example"}, got.RPCURLs)
	})

	t.Run("update unknown chain fails", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)
		assert.ErrorIs(t, s.UpdateChain(999, Update{}), ErrUnknownChain)
	})

	t.Run("delete refuses the current chain", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		assert.ErrorIs(t, s.DeleteChain(1), ErrCurrentChain)
		require.NoError(t, s.DeleteChain(137))
		_, err = s.Get(137)
		assert.ErrorIs(t, err, ErrUnknownChain)
	})

	t.Run("returned configs are copies", func(t *testing.T) {
		s, err := NewService(testConfigs())
		require.NoError(t, err)

		cur := s.CurrentChain()
		cur.DisplayName = "mutated"
		assert.Equal(t, "Ethereum Mainnet", s.CurrentChain().DisplayName)
	})
}

func TestDefaultChains(t *testing.T) {
	chains := DefaultChains()
	require.NotEmpty(t, chains)

	seen := map[uint64]bool{}
	for _, cfg := range chains {
		assert.False(t, seen[cfg.ID], "duplicate chain id %d", cfg.ID)
		seen[cfg.ID] = true
		assert.NotEmpty(t, cfg.RPCURLs, "chain %d has no RPC URLs", cfg.ID)
		assert.NotEmpty(t, cfg.EntryPoint, "chain %d has no entry point", cfg.ID)
	}
	assert.True(t, seen[1])
	assert.True(t, seen[11155111])
}
