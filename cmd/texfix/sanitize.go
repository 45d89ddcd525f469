package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"resumetex/internal/latex"
)

// sanitizer rewrites a document and reports what it changed.
type sanitizer func(doc string) (string, []latex.RepairAttempt)

// single wraps a one-pass rewrite as a sanitizer reporting under name.
func single(name string, fn func(string) string) sanitizer {
	return func(doc string) (string, []latex.RepairAttempt) {
		out := fn(doc)
		if out == doc {
			return out, nil
		}
		return out, []latex.RepairAttempt{{Description: name, DocumentAfter: out}}
	}
}

var sanitizers = map[string]sanitizer{
	"all":     latex.SanitizeWithReport,
	"braces":  single("balanced braces", latex.BalanceBraces),
	"styling": single("repaired styling macros", latex.RepairStylingMacros),
}

func newSanitizeCmd(opts *rootOptions) *cobra.Command {
	var (
		write bool
		pass  string
	)
	cmd := &cobra.Command{
		Use:   "sanitize <file.tex>...",
		Short: "Apply the pre-compile cleanup passes",
		Long: `Escape stray specials, balance braces, fix styling macros and convert
markdown leftovers. A single file is printed to stdout unless --write is set;
several files require --write. --pass limits the run to the brace or
styling-macro repair.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fix, ok := sanitizers[pass]
			if !ok {
				return errors.Errorf("unknown pass %q (want all, braces or styling)", pass)
			}
			if len(args) > 1 && !write {
				return errors.New("sanitizing several files requires --write")
			}
			if len(args) == 1 && !write {
				doc, err := readSource(args[0])
				if err != nil {
					return err
				}
				out, attempts := fix(doc)
				reportAttempts(cmd, args[0], attempts)
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}

			g, _ := errgroup.WithContext(contextOrBackground(cmd))
			g.SetLimit(opts.limit())
			reports := make([][]latex.RepairAttempt, len(args))
			for i, path := range args {
				g.Go(func() error {
					attempts, err := sanitizeFile(path, fix)
					reports[i] = attempts
					return err
				})
			}
			err := g.Wait()
			for i, path := range args {
				reportAttempts(cmd, path, reports[i])
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Rewrite files in place")
	cmd.Flags().StringVar(&pass, "pass", "all", "Passes to run: all, braces or styling")
	return cmd
}

func sanitizeFile(path string, fix sanitizer) ([]latex.RepairAttempt, error) {
	doc, err := readSource(path)
	if err != nil {
		return nil, err
	}
	out, attempts := fix(doc)
	if out == doc {
		return attempts, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return nil, errors.Wrapf(err, "write %s", path)
	}
	return attempts, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(data), nil
}

func reportAttempts(cmd *cobra.Command, path string, attempts []latex.RepairAttempt) {
	for _, a := range attempts {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, a.Description)
	}
}

// contextOrBackground covers commands executed without ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
