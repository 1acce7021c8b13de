package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, chain and account status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newDaemonClient(cfg.ListenAddr)

	locked, err := client.lockStatus()
	if err != nil {
		return err
	}
	lockLabel := ui.SuccessStyle.Render("unlocked")
	if locked {
		lockLabel = ui.ErrorStyle.Render("locked")
	}
	fmt.Printf("Wallet:  %s\n", lockLabel)

	current, err := client.currentChain()
	if err != nil {
		return err
	}
	if current != nil {
		fmt.Printf("Chain:   %s (chain %d)\n", current.DisplayName, current.ID)
	}

	acc, err := client.currentAccount()
	if err != nil {
		fmt.Println("Account: none")
		return nil
	}
	deployed := "counterfactual"
	if acc.IsDeployed {
		deployed = "deployed"
	}
	fmt.Printf("Account: %s (%s)\n", acc.Address.Hex(), deployed)
	if acc.Balance != nil {
		currency := "ETH"
		if current != nil && current.NativeCurrency != "" {
			currency = current.NativeCurrency
		}
		fmt.Printf("Balance: %s %s\n", chain.FormatBalance(acc.Balance.ToInt(), 18), currency)
	}
	return nil
}
