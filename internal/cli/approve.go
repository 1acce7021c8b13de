package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShuqiCH3N/Elytro/internal/approval"
	"github.com/ShuqiCH3N/Elytro/internal/ui"
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Review the pending approval",
	Long: `Fetches the daemon's pending approval, renders it for review, and
resolves or rejects it with your decision.`,
	RunE: runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newDaemonClient(cfg.ListenAddr)

	ap, err := client.currentApproval()
	if err != nil {
		return err
	}
	if ap == nil {
		fmt.Println("No pending approval.")
		return nil
	}

	result, err := ui.RunApproval(ap)
	if err != nil {
		return err
	}

	if !result.Approved {
		if err := client.rejectApproval(ap.ID); err != nil {
			return err
		}
		fmt.Println(ui.ErrorStyle.Render(ui.SymbolCross) + " Rejected.")
		return nil
	}

	var data map[string]any
	if ap.Type == approval.TypeUnlock {
		data = map[string]any{"password": result.Password}
	}
	if err := client.resolveApproval(ap.ID, data); err != nil {
		return err
	}
	fmt.Println(ui.SuccessStyle.Render(ui.SymbolCheck) + " Approved.")
	return nil
}
