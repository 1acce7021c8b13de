package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ShuqiCH3N/Elytro/internal/keyring"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the wallet owner key",
	Long: `Creates the owner EOA that controls every smart account. The key is
stored encrypted in the data directory. Unlocking caches a session
credential in the data directory (mode 0600) so the daemon can resume
without re-prompting; locking the wallet removes it.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keys, err := keyring.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	if _, err := keys.Owner(); err == nil {
		return errors.New("an owner already exists; remove the data directory to start over")
	}

	password, err := readPassword("Enter password for the new owner: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	owner, err := keys.CreateNewOwner(password)
	if err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}

	fmt.Printf("Owner created: %s\n", owner.Address.Hex())
	fmt.Println("Run 'elytro serve' to start the daemon.")
	return nil
}
