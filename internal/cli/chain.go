package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShuqiCH3N/Elytro/internal/ui"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect and switch chains",
}

var chainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured chains",
	RunE:  runChainList,
}

var chainSwitchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Switch the active chain interactively",
	RunE:  runChainSwitch,
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.AddCommand(chainListCmd)
	chainCmd.AddCommand(chainSwitchCmd)
}

func runChainList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newDaemonClient(cfg.ListenAddr)

	chains, err := client.chains()
	if err != nil {
		return err
	}
	current, err := client.currentChain()
	if err != nil {
		return err
	}

	for _, c := range chains {
		marker := "  "
		if current != nil && c.ID == current.ID {
			marker = ui.SelectorCursor.Render(ui.SymbolBullet) + " "
		}
		fmt.Printf("%s%-28s chain %d\n", marker, c.DisplayName, c.ID)
	}
	return nil
}

func runChainSwitch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newDaemonClient(cfg.ListenAddr)

	chains, err := client.chains()
	if err != nil {
		return err
	}
	current, err := client.currentChain()
	if err != nil {
		return err
	}
	var currentID uint64
	if current != nil {
		currentID = current.ID
	}

	id, chosen, err := ui.RunChainSelector(chains, currentID)
	if err != nil {
		return err
	}
	if !chosen || id == currentID {
		return nil
	}

	if err := client.switchAccountByChain(id); err != nil {
		return err
	}
	fmt.Printf("%s Switched to chain %d.\n", ui.SuccessStyle.Render(ui.SymbolCheck), id)
	return nil
}
