package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"songdwh/internal/config"
	"songdwh/internal/ui"
	"songdwh/pkg/errors"
)

type configInitOptions struct {
	output string
	force  bool
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write the songdwh configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			if cfg.Warehouse.Password != "" {
				cfg.Warehouse.Password = "********"
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode configuration")
			}
			return enc.Close()
		},
	})

	opts := &configInitOptions{}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the resolved configuration as YAML",
		Long: `Write the resolved configuration, for example one read from a legacy
dwh.cfg with --config, to the per-user YAML config file. The password is
not written; store it with 'songdwh credentials set'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}

			path := opts.output
			if path == "" {
				path = config.GetConfigFile()
			}
			if config.FileExists(path) && !opts.force {
				return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("%s already exists", path)).
					WithContext("path", path).
					WithSuggestions("Pass --force to overwrite it")
			}

			if err := config.Save(cfg, path); err != nil {
				return err
			}
			ui.ShowSuccess(cmd.OutOrStdout(), fmt.Sprintf("Configuration written to %s", path))
			return nil
		},
	}
	initCmd.Flags().StringVarP(&opts.output, "output", "o", "", "file to write (default ~/.songdwh/config.yaml)")
	initCmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config file")
	cmd.AddCommand(initCmd)

	return cmd
}
