package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"songdwh/internal/catalog"
	"songdwh/pkg/errors"
)

// Output formats for render
const (
	formatSQL  = "sql"
	formatYAML = "yaml"
	formatJSON = "json"
)

type renderOptions struct {
	phase  string
	format string
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the statement lists without connecting",
		Long: `Print the drop, create, copy and insert statements for the configured
dialect so they can be reviewed or handed to another runner.`,
		Example: `  songdwh render --phase create
  songdwh render --dialect snowflake --format yaml
  songdwh render --config dwh.cfg --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.phase, "phase", "p", "all", "phase to print: all, drop, create, copy, insert")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatSQL, "output format: sql, yaml, json")
	return cmd
}

func runRender(cmd *cobra.Command, root *rootOptions, opts *renderOptions) error {
	sess, err := newSession(cmd, root)
	if err != nil {
		return err
	}

	statements := sess.catalog.All()
	if strings.TrimSpace(strings.ToLower(opts.phase)) != "all" {
		phase, err := catalog.ParsePhase(opts.phase)
		if err != nil {
			return err
		}
		if statements, err = sess.catalog.Phase(phase); err != nil {
			return err
		}
	}

	return writeStatements(cmd.OutOrStdout(), statements, opts.format)
}

func writeStatements(w io.Writer, statements []catalog.Statement, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case formatSQL:
		for _, s := range statements {
			if _, err := fmt.Fprintf(w, "-- %s: %s\n%s;\n\n", s.Phase, s.Table, s.SQL); err != nil {
				return err
			}
		}
		return nil

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(statements); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode statements as YAML")
		}
		return enc.Close()

	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(statements); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode statements as JSON")
		}
		return nil
	}

	return errors.ValidationError("format", format, "expected sql, yaml or json")
}
