package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"songdwh/internal/config"
	"songdwh/internal/etl"
	"songdwh/internal/ui"
	"songdwh/internal/warehouse"
)

type pipelineOptions struct {
	yes bool
}

func newCreateTablesCmd(root *rootOptions) *cobra.Command {
	opts := &pipelineOptions{}
	cmd := &cobra.Command{
		Use:   "create-tables",
		Short: "Drop and recreate every warehouse table",
		Long: `Drop the staging, fact and dimension tables if they exist and create
them again, empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts, etl.OperationCreateTables)
		},
	}
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newETLCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "etl",
		Short: "Load staging tables and populate the star schema",
		Long: `Bulk load the event log and song metadata into the staging tables,
then insert the users, songs, artists, time and songplays rows derived
from them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, &pipelineOptions{}, etl.OperationLoadAndTransform)
		},
	}
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &pipelineOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recreate the tables and load them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts, etl.OperationFullRefresh)
		},
	}
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runPipeline(cmd *cobra.Command, root *rootOptions, opts *pipelineOptions, op etl.Operation) error {
	sess, err := newSession(cmd, root)
	if err != nil {
		return err
	}
	defer func() { _ = sess.logger.Sync() }()

	if err := config.ResolvePassword(sess.cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if op != etl.OperationLoadAndTransform && !opts.yes && ui.IsInteractive() {
		ui.ShowWarning(out, "This drops every warehouse table and the data in it.")
		ok, err := ui.Confirm("Continue?", false)
		if err != nil {
			return err
		}
		if !ok {
			ui.ShowInfo(out, "Aborted")
			return nil
		}
	}

	service := warehouse.NewService(sess.cfg, sess.logger)
	if err := service.Connect(cmd.Context()); err != nil {
		return err
	}
	defer func() {
		if err := service.Close(); err != nil {
			sess.logger.Warn("Failed to close warehouse connection", zap.Error(err))
		}
	}()

	report, err := etl.NewRunner(sess.catalog, service, sess.logger).Run(cmd.Context(), op)
	ui.RenderResults(out, report.Results, err)
	if err != nil {
		return err
	}

	ui.ShowSuccess(out, fmt.Sprintf("%d statements executed in %s (run %s)",
		report.Statements(), report.Duration.Round(time.Millisecond), report.RunID))
	return nil
}
