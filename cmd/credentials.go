package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"songdwh/internal/config"
	"songdwh/internal/ui"
	"songdwh/pkg/errors"
)

func newCredentialsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the warehouse password in the OS keyring",
		Long: `Store or remove the warehouse password in the operating system keyring.
A stored password is used whenever warehouse.password is not configured.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the warehouse password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			if err := config.StorePassword(cfg.Warehouse, password); err != nil {
				return err
			}
			ui.ShowSuccess(cmd.OutOrStdout(), fmt.Sprintf("Password stored for %s", cfg.Warehouse.KeyringUser()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored warehouse password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}

			if err := config.DeletePassword(cfg.Warehouse); err != nil {
				return err
			}
			ui.ShowSuccess(cmd.OutOrStdout(), fmt.Sprintf("Password removed for %s", cfg.Warehouse.KeyringUser()))
			return nil
		},
	})

	return cmd
}

// readPassword prompts on a terminal and reads one line otherwise
func readPassword(cmd *cobra.Command) (string, error) {
	if ui.IsInteractive() {
		return ui.Password("Warehouse password:", "Stored in the OS keyring, never in the config file")
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "No password on standard input")
		}
		return "", errors.New(errors.ErrCodeInvalidInput, "Password must not be empty")
	}
	return password, nil
}
