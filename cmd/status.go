package cmd

import (
	"github.com/spf13/cobra"

	"songdwh/internal/catalog"
	"songdwh/internal/config"
	"songdwh/internal/ui"
	"songdwh/internal/warehouse"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which tables exist and how many rows they hold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd, root)
			if err != nil {
				return err
			}
			defer func() { _ = sess.logger.Sync() }()

			if err := config.ResolvePassword(sess.cfg); err != nil {
				return err
			}

			service := warehouse.NewService(sess.cfg, sess.logger)
			if err := service.Connect(cmd.Context()); err != nil {
				return err
			}
			defer service.Close()

			statuses, err := service.Inspect(cmd.Context(), catalog.Tables())
			if err != nil {
				return err
			}
			ui.RenderStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
}
