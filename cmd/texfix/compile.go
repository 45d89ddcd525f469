package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"

	"resumetex/internal/latex"
)

func newCompileCmd(opts *rootOptions) *cobra.Command {
	var output string
	var local, sanitize bool
	cmd := &cobra.Command{
		Use:   "compile <file.tex>",
		Short: "Typeset a document and report its page count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if local {
				cfg.LaTeX.LocalOnly = true
			}

			doc, err := readSource(args[0])
			if err != nil {
				return err
			}
			if sanitize {
				doc = latex.Sanitize(doc)
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], ".tex") + ".pdf"
			}

			res, err := latex.NewCompilerFromConfig(cfg).Compile(contextOrBackground(cmd), doc)
			if err != nil {
				var compileErr *latex.CompilationError
				if errors.As(err, &compileErr) && compileErr.DiagnosticLog != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), compileErr.DiagnosticLog)
				}
				return pkgerrors.Wrapf(err, "compile %s", args[0])
			}
			if err := os.WriteFile(output, res.PDF, 0o644); err != nil {
				return pkgerrors.Wrap(err, "write pdf")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d page(s) via %s\n", output, res.PageCount, res.Backend)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "PDF path (default: source name with .pdf)")
	cmd.Flags().BoolVar(&local, "local", false, "Skip the remote renderer")
	cmd.Flags().BoolVar(&sanitize, "sanitize", true, "Sanitize before compiling")
	return cmd
}
