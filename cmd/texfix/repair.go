package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"resumetex/internal/latex"
)

func newRepairCmd(_ *rootOptions) *cobra.Command {
	var logPath string
	var write bool
	cmd := &cobra.Command{
		Use:   "repair <file.tex> --log <file.log>",
		Short: "Apply the targeted fix for an engine error log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSource(args[0])
			if err != nil {
				return err
			}
			diag, err := os.ReadFile(logPath)
			if err != nil {
				return errors.Wrap(err, "read log")
			}

			out := latex.AttemptFix(doc, string(diag))
			fmt.Fprintln(cmd.ErrOrStderr(), out.Description)
			if !out.Fixed {
				return errors.Errorf("%s: no automatic fix", args[0])
			}
			if write {
				return errors.Wrap(os.WriteFile(args[0], []byte(out.Document), 0o644), "write repaired source")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out.Document)
			return err
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "Engine log to diagnose")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Rewrite the file in place")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}
