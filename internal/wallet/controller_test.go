package wallet

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/history"
	"github.com/ShuqiCH3N/Elytro/internal/session"
	"github.com/ShuqiCH3N/Elytro/internal/userop"
)

const (
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

func mustBig(t *testing.T, hex string) *big.Int {
	t.Helper()
	v, err := hexutil.DecodeBig(hex)
	require.NoError(t, err)
	return v
}

func drain(ch <-chan session.Message) []session.Message {
	var out []session.Message
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func wireOp() *userop.Wire {
	return &userop.Wire{
		Sender:               "0x1111111111111111111111111111111111111111",
		Nonce:                "0x1",
		CallData:             "0xbeef",
		CallGasLimit:         "0x30d40",
		MaxFeePerGas:         "0x6fc23ac00",
		MaxPriorityFeePerGas: "0x77359400",
	}
}

func TestLockStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong password keeps the wallet locked", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		require.NoError(t, f.ctrl.Lock(ctx))

		err := f.ctrl.Unlock(ctx, "wrongpassword")
		require.Error(t, err)

		locked, err := f.ctrl.GetLockStatus(ctx)
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("correct password unlocks", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		require.NoError(t, f.ctrl.Lock(ctx))

		require.NoError(t, f.ctrl.Unlock(ctx, "testpassword"))
		locked, err := f.ctrl.GetLockStatus(ctx)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("lock status read may lazily unlock", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		// Simulate a restart: locked but the session credential survives.
		f.keyring.locked = true

		locked, err := f.ctrl.GetLockStatus(ctx)
		require.NoError(t, err)
		assert.False(t, locked)
	})
}

func TestConnectWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("announces the account only to the connecting origin", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		dappCh, unsub1 := f.sessions.Subscribe("https://dapp.example")
		defer unsub1()
		otherCh, unsub2 := f.sessions.Subscribe("https://other.example")
		defer unsub2()

		err := f.ctrl.ConnectWallet(ctx, session.DApp{Origin: "https://dapp.example", Name: "Dapp"}, 1)
		require.NoError(t, err)

		got := drain(dappCh)
		require.Len(t, got, 1)
		assert.Equal(t, session.EventAccountsChanged, got[0].Event)
		addrs, ok := got[0].Payload.([]string)
		require.True(t, ok)
		require.Len(t, addrs, 1)

		assert.Empty(t, drain(otherCh), "connect must not leak the account to unrelated sessions")
	})

	t.Run("empty account list before any account exists", func(t *testing.T) {
		f := newFixture(t)

		ch, unsub := f.sessions.Subscribe("https://dapp.example")
		defer unsub()

		require.NoError(t, f.ctrl.ConnectWallet(ctx, session.DApp{Origin: "https://dapp.example"}, 1))
		got := drain(ch)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].Payload)
	})
}

func TestEventSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses origins that never connected", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		_, _, err := f.ctrl.SubscribeEvents(ctx, "https://stranger.example")
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeUnauthorized, rpcErr.Code)

		// The refused origin holds no channel, so a chain switch reaches
		// nobody on its behalf.
		require.NoError(t, f.ctrl.SwitchAccountByChain(ctx, 10))
		assert.Zero(t, f.sessions.SessionCount("https://stranger.example"))
	})

	t.Run("connected origins stream wallet events", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		require.NoError(t, f.ctrl.ConnectWallet(ctx, session.DApp{Origin: "https://dapp.example"}, 1))
		events, unsub, err := f.ctrl.SubscribeEvents(ctx, "https://dapp.example")
		require.NoError(t, err)
		defer unsub()

		require.NoError(t, f.ctrl.SwitchAccountByChain(ctx, 10))

		got := drain(events)
		require.Len(t, got, 2)
		assert.Equal(t, session.EventChainChanged, got[0].Event)
		assert.Equal(t, "0xa", got[0].Payload)
		assert.Equal(t, session.EventAccountsChanged, got[1].Event)
	})

	t.Run("disconnect closes the stream and stops delivery", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		require.NoError(t, f.ctrl.ConnectWallet(ctx, session.DApp{Origin: "https://dapp.example"}, 1))
		events, _, err := f.ctrl.SubscribeEvents(ctx, "https://dapp.example")
		require.NoError(t, err)
		drain(events)

		require.NoError(t, f.ctrl.DisconnectWallet(ctx, "https://dapp.example"))
		_, open := <-events
		assert.False(t, open)

		_, _, err = f.ctrl.SubscribeEvents(ctx, "https://dapp.example")
		require.Error(t, err)

		conns, err := f.ctrl.GetConnectedDApps(ctx)
		require.NoError(t, err)
		assert.Empty(t, conns)
	})
}

func TestSignMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("fails with internal error when no current account", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.ctrl.SignMessage(ctx, "hello")
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeInternal, rpcErr.Code)
	})

	t.Run("fails with invalid params on non-textual message", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		_, err := f.ctrl.SignMessage(ctx, 42)
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeInvalidParams, rpcErr.Code)
	})

	t.Run("signs with the current account's address", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		cur, err := f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)

		sig, err := f.ctrl.SignMessage(ctx, "hello")
		require.NoError(t, err)
		assert.Contains(t, sig, cur.Address.Hex())
		assert.Contains(t, sig, "hello")
	})
}

func TestSignTypedData(t *testing.T) {
	ctx := context.Background()

	const typedDataJSON = `{
		"types": {
			"EIP712Domain": [
				{"name": "name", "type": "string"},
				{"name": "chainId", "type": "uint256"}
			],
			"Mail": [
				{"name": "contents", "type": "string"}
			]
		},
		"primaryType": "Mail",
		"domain": {"name": "Elytro", "chainId": "1"},
		"message": {"contents": "Hello"}
	}`

	t.Run("JSON string input resolves to signing the hash", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		sig, err := f.ctrl.SignTypedData(ctx, typedDataJSON)
		require.NoError(t, err)
		assert.Contains(t, sig, "sig(0x")
	})

	t.Run("structured list input resolves to signing the hash", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		sig, err := f.ctrl.SignTypedData(ctx, []any{
			map[string]any{"type": "string", "name": "message", "value": "hi"},
		})
		require.NoError(t, err)
		assert.Contains(t, sig, "sig(0x")
	})

	t.Run("hashing failure surfaces as one internal error", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		_, err := f.ctrl.SignTypedData(ctx, "{not json")
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeInternal, rpcErr.Code)
		assert.Contains(t, rpcErr.Message, "failed to parse typed data")
	})

	t.Run("signing failure is normalized to internal too", func(t *testing.T) {
		f := newFixture(t) // no account

		_, err := f.ctrl.SignTypedData(ctx, typedDataJSON)
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeInternal, rpcErr.Code)
	})
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("fails without an owner", func(t *testing.T) {
		f := newFixture(t)

		err := f.ctrl.CreateAccount(ctx, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner")
	})

	t.Run("switches chain before creating the account", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t) // on chain 1

		require.NoError(t, f.ctrl.CreateAccount(ctx, 137))

		// The chain switched and the switch side effects ran.
		cur, err := f.ctrl.GetCurrentChain(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(137), cur.ID)
		require.NotEmpty(t, f.sdk.resetConfigs)
		assert.Equal(t, uint64(137), f.sdk.resetConfigs[len(f.sdk.resetConfigs)-1].ID)

		// The account was created for 137, never the old chain.
		acc, err := f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(137), acc.ChainID)
	})

	t.Run("creating on the current chain does not re-run switch effects", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		resets := len(f.sdk.resetConfigs)

		require.NoError(t, f.ctrl.CreateAccount(ctx, 1))
		assert.Len(t, f.sdk.resetConfigs, resets)
	})
}

func TestSwitchAccountByChain(t *testing.T) {
	ctx := context.Background()

	t.Run("broadcasts to all sessions and reloads history", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		// Seed history on chain 1's account.
		require.NoError(t, f.ctrl.AddNewHistory(ctx, history.Record{OpHash: "0x01", ChainID: 1}))

		a, u1 := f.sessions.Subscribe("https://a.example")
		defer u1()
		b, u2 := f.sessions.Subscribe("https://b.example")
		defer u2()

		require.NoError(t, f.ctrl.SwitchAccountByChain(ctx, 10))

		for _, ch := range []<-chan session.Message{a, b} {
			msgs := drain(ch)
			var accountEvents int
			for _, m := range msgs {
				if m.Event == session.EventAccountsChanged {
					accountEvents++
				}
			}
			assert.Equal(t, 1, accountEvents, "every session hears the account change")
		}

		// History now scoped to the chain-10 account.
		items, err := f.ctrl.GetLatestHistories(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)

		require.NoError(t, f.ctrl.SwitchAccountByChain(ctx, 1))
		items, err = f.ctrl.GetLatestHistories(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "0x01", items[0].OpHash)
	})

	t.Run("switching to the current chain skips chain side effects", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		resets := len(f.sdk.resetConfigs)

		require.NoError(t, f.ctrl.SwitchAccountByChain(ctx, 1))
		assert.Len(t, f.sdk.resetConfigs, resets)
	})
}

func TestUpdateChainConfig(t *testing.T) {
	ctx := context.Background()
	name := "Renamed"

	t.Run("updating the current chain reinitializes and broadcasts", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		ch, unsub := f.sessions.Subscribe("https://a.example")
		defer unsub()

		require.NoError(t, f.ctrl.UpdateChainConfig(ctx, 1, chain.Update{DisplayName: &name}))

		require.Len(t, f.sdk.resetConfigs, 1)
		assert.Equal(t, "Renamed", f.sdk.resetConfigs[0].DisplayName)
		require.Len(t, f.client.initConfigs, 1)

		msgs := drain(ch)
		require.Len(t, msgs, 1)
		assert.Equal(t, session.EventChainChanged, msgs[0].Event)
		assert.Equal(t, hexutil.EncodeUint64(1), msgs[0].Payload)
	})

	t.Run("updating a non-current chain changes nothing else", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		ch, unsub := f.sessions.Subscribe("https://a.example")
		defer unsub()

		require.NoError(t, f.ctrl.UpdateChainConfig(ctx, 137, chain.Update{DisplayName: &name}))

		assert.Empty(t, f.sdk.resetConfigs)
		assert.Empty(t, f.client.initConfigs)
		assert.Empty(t, drain(ch))
	})
}

func TestApprovalFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("locked signing waits for an unlock approval", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		require.NoError(t, f.ctrl.Lock(ctx))

		type result struct {
			sig string
			err error
		}
		done := make(chan result, 1)
		go func() {
			sig, err := f.ctrl.SignMessage(ctx, "hello")
			done <- result{sig, err}
		}()

		// Wait until the unlock approval shows up, then resolve it.
		var apID string
		require.Eventually(t, func() bool {
			ap, err := f.ctrl.GetCurrentApproval(ctx)
			if err != nil || ap == nil {
				return false
			}
			apID = ap.ID
			return true
		}, waitTimeout, waitTick)

		require.NoError(t, f.ctrl.ResolveApproval(ctx, apID, map[string]any{"password": "testpassword"}))

		res := <-done
		require.NoError(t, res.err)
		assert.Contains(t, res.sig, "hello")

		locked, err := f.ctrl.GetLockStatus(ctx)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("rejected unlock approval fails the signing call", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		require.NoError(t, f.ctrl.Lock(ctx))

		done := make(chan error, 1)
		go func() {
			_, err := f.ctrl.SignMessage(ctx, "hello")
			done <- err
		}()

		var apID string
		require.Eventually(t, func() bool {
			ap, _ := f.ctrl.GetCurrentApproval(ctx)
			if ap == nil {
				return false
			}
			apID = ap.ID
			return true
		}, waitTimeout, waitTick)

		require.NoError(t, f.ctrl.RejectApproval(ctx, apID))

		err := <-done
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeUserRejected, rpcErr.Code)
	})

	t.Run("resolving a stale id leaves the pending approval alone", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		require.NoError(t, f.ctrl.Lock(ctx))

		go func() { _, _ = f.ctrl.SignMessage(ctx, "hello") }()

		var apID string
		require.Eventually(t, func() bool {
			ap, _ := f.ctrl.GetCurrentApproval(ctx)
			if ap == nil {
				return false
			}
			apID = ap.ID
			return true
		}, waitTimeout, waitTick)

		require.NoError(t, f.ctrl.ResolveApproval(ctx, "approval-stale", nil))

		ap, err := f.ctrl.GetCurrentApproval(ctx)
		require.NoError(t, err)
		require.NotNil(t, ap)
		assert.Equal(t, apID, ap.ID)

		// Clean up the parked goroutine.
		require.NoError(t, f.ctrl.ResolveApproval(ctx, apID, map[string]any{"password": "testpassword"}))
	})
}

func TestUserOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("sign round-trips through the format boundary", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		signed, err := f.ctrl.SignUserOperation(ctx, wireOp())
		require.NoError(t, err)
		assert.Equal(t, "0x0102", signed.Signature)
		assert.Equal(t, "0x1", signed.Nonce)
	})

	t.Run("send requires the fee fields", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		w := wireOp()
		w.MaxFeePerGas = ""
		_, err := f.ctrl.SendUserOperation(ctx, w)
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeInvalidParams, rpcErr.Code)
	})

	t.Run("send returns the op hash", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		opHash, err := f.ctrl.SendUserOperation(ctx, wireOp())
		require.NoError(t, err)
		assert.Equal(t, "0xuserophash", opHash)
		require.NotNil(t, f.sdk.lastSent)
		assert.Equal(t, int64(30_000_000_000), f.sdk.lastSent.MaxFeePerGas.Int64())
	})

	t.Run("deploy op requires an owner", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ctrl.CreateDeployUserOp(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner")
	})

	t.Run("tx op is built for the current account", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		w, err := f.ctrl.CreateTxUserOp(ctx, []CallParam{
			{To: "0x3333333333333333333333333333333333333333", Value: "0xde0b6b3a7640000"},
		})
		require.NoError(t, err)

		cur, err := f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)
		assert.Equal(t, cur.Address.Hex(), common.HexToAddress(w.Sender).Hex())
	})

	t.Run("decode returns boundary-formatted calls", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		f.sdk.decoded = []Call{{
			To:    common.HexToAddress("0x4444444444444444444444444444444444444444"),
			Value: mustBig(t, "0xde0b6b3a7640000"),
			Data:  []byte{0xaa},
		}}

		calls, err := f.ctrl.DecodeUserOp(ctx, wireOp())
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "0xde0b6b3a7640000", calls[0].Value)
		assert.Equal(t, "0xaa", calls[0].Data)
	})

	t.Run("estimate fills the gas fields", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		w, err := f.ctrl.EstimateGas(ctx, wireOp())
		require.NoError(t, err)
		assert.Equal(t, "0x30d40", w.CallGasLimit)
		assert.Equal(t, "0xf4240", w.VerificationGasLimit)
	})

	t.Run("pack returns op and top-up calculation", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		res, err := f.ctrl.PackUserOp(ctx, wireOp(), "0x64")
		require.NoError(t, err)
		require.NotNil(t, res.UserOp)
		assert.Equal(t, hexutil.EncodeBig(mustBig(t, "0x44c")), res.MissingAmount) // 100 + 1000
		assert.True(t, res.NeedDeposit)
	})
}

func TestGetCurrentAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("fails when no account exists", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ctrl.GetCurrentAccount(ctx)
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeInternal, rpcErr.Code)
	})

	t.Run("lazily activates once deployment is observed", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		acc, err := f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)
		assert.False(t, acc.IsDeployed)

		f.sdk.deployed = true
		acc, err = f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)
		assert.True(t, acc.IsDeployed)

		// Cached: further reads skip the deployment check.
		f.sdk.deployed = false
		acc, err = f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)
		assert.True(t, acc.IsDeployed)
	})

	t.Run("enriches with a live balance", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)
		f.client.balance = mustBig(t, "0xde0b6b3a7640000")

		acc, err := f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)
		require.NotNil(t, acc.Balance)
		assert.Zero(t, acc.Balance.ToInt().Cmp(f.client.balance))
	})
}

func TestHistories(t *testing.T) {
	ctx := context.Background()

	t.Run("lazy initialization on first read", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		items, err := f.ctrl.GetLatestHistories(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("entries project to data plus status", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		require.NoError(t, f.ctrl.AddNewHistory(ctx, history.Record{
			Op:     &userop.Wire{Nonce: "0x1"},
			OpHash: "0xabc",
		}))

		items, err := f.ctrl.GetLatestHistories(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "0xabc", items[0].OpHash)
		assert.Equal(t, history.StatusPending, items[0].Status)
		assert.NotZero(t, items[0].Timestamp)
	})

	t.Run("fails without a current account", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ctrl.GetLatestHistories(ctx)
		require.Error(t, err)
	})
}

func TestGetENSInfoByName(t *testing.T) {
	ctx := context.Background()

	t.Run("composes the two lookups", func(t *testing.T) {
		f := newFixture(t)
		f.client.ensAddr = common.HexToAddress("0x5555555555555555555555555555555555555555")
		f.client.ensAvatar = "https://avatar.example/x.png"

		info, err := f.ctrl.GetENSInfoByName(ctx, "vitalik.eth")
		require.NoError(t, err)
		assert.Equal(t, "vitalik.eth", info.Name)
		assert.Equal(t, f.client.ensAddr.Hex(), info.Address)
		assert.Equal(t, "https://avatar.example/x.png", info.Avatar)
	})

	t.Run("lookup errors propagate untouched", func(t *testing.T) {
		f := newFixture(t)
		f.client.ensErr = assert.AnError

		_, err := f.ctrl.GetENSInfoByName(ctx, "vitalik.eth")
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestRemoveAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("removes by address", func(t *testing.T) {
		f := newFixture(t)
		f.withOwner(t)

		cur, err := f.ctrl.GetCurrentAccount(ctx)
		require.NoError(t, err)

		require.NoError(t, f.ctrl.RemoveAccount(ctx, cur.Address.Hex()))
		accounts, err := f.ctrl.GetAccounts(ctx)
		require.NoError(t, err)
		assert.Empty(t, accounts)
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		f := newFixture(t)
		err := f.ctrl.RemoveAccount(ctx, "not-an-address")
		require.Error(t, err)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, CodeInvalidParams, rpcErr.Code)
	})
}
