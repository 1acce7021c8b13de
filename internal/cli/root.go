package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ShuqiCH3N/Elytro/internal/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "elytro",
		Short: "Smart-account wallet daemon",
		Long: `elytro is the wallet core daemon for ERC-4337 smart accounts.

It owns the key material, accounts, chains and transaction history, and
exposes every wallet operation over a local HTTP API. Privileged actions
are gated behind interactive approvals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args)
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.elytro/config.yaml)")
	rootCmd.PersistentFlags().String("listen", "", "daemon listen address")
	_ = viper.BindPFlag("listen_addr", rootCmd.PersistentFlags().Lookup("listen"))
}

func initLogging() {
	config.LoadEnv()

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// loadConfig resolves the daemon configuration and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
	if addr := viper.GetString("listen_addr"); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg, nil
}
