package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ShuqiCH3N/Elytro/internal/account"
	"github.com/ShuqiCH3N/Elytro/internal/api"
	"github.com/ShuqiCH3N/Elytro/internal/approval"
	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/config"
	"github.com/ShuqiCH3N/Elytro/internal/history"
	"github.com/ShuqiCH3N/Elytro/internal/keyring"
	"github.com/ShuqiCH3N/Elytro/internal/sdk"
	"github.com/ShuqiCH3N/Elytro/internal/session"
	"github.com/ShuqiCH3N/Elytro/internal/wallet"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wallet daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctrl, teardown, err := buildController(cfg)
	if err != nil {
		return err
	}
	defer teardown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"dataDir": cfg.DataDir,
		"chains":  len(cfg.Chains),
	}).Info("starting wallet daemon")

	return api.NewServer(ctrl).Run(ctx, cfg.ListenAddr)
}

// buildController wires the full service graph for the daemon.
func buildController(cfg *config.Config) (*wallet.Controller, func(), error) {
	keys, err := keyring.New(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	chains, err := chain.NewService(cfg.Chains)
	if err != nil {
		return nil, nil, err
	}

	accounts, err := account.NewManager(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open account store: %w", err)
	}

	var store history.Store
	var closeStore func()
	if cfg.MySQLDSN != "" {
		sqlStore, err := history.OpenSQLStore(cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history database: %w", err)
		}
		store = sqlStore
		closeStore = func() { _ = sqlStore.Close() }
	} else {
		fileStore, err := history.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history store: %w", err)
		}
		store = fileStore
		closeStore = func() {}
	}

	sdkSvc := sdk.New(keys)
	client := chain.NewClient()

	ctrl := wallet.NewController(wallet.Services{
		Keyring:     keys,
		Approvals:   approval.NewService(),
		Connections: session.NewConnections(),
		Sessions:    session.NewManager(),
		Chains:      chains,
		Accounts:    accounts,
		Histories:   history.NewManager(store),
		SDK:         sdkSvc,
		Client:      client,
	})

	// Bind the SDK and client to the initial chain. The daemon still
	// starts when the chain is unreachable; the first chain switch or
	// update retries.
	if cur := chains.CurrentChain(); cur != nil {
		if err := sdkSvc.ResetSDK(cur); err != nil {
			logrus.WithError(err).Warn("sdk not bound to initial chain")
		}
		if err := client.Init(cur); err != nil {
			logrus.WithError(err).Warn("chain client not bound to initial chain")
		}
	}

	teardown := func() {
		sdkSvc.Close()
		client.Close()
		closeStore()
	}
	return ctrl, teardown, nil
}
