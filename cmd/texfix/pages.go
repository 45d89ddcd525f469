package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"resumetex/internal/latex"
)

func newPagesCmd(opts *rootOptions) *cobra.Command {
	var budget int
	cmd := &cobra.Command{
		Use:   "pages <file.pdf>...",
		Short: "Print page counts, optionally checking a page budget",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts := make([]int, len(args))
			g, _ := errgroup.WithContext(contextOrBackground(cmd))
			g.SetLimit(opts.limit())
			for i, path := range args {
				g.Go(func() error {
					data, err := os.ReadFile(path)
					if err != nil {
						return errors.Wrapf(err, "read %s", path)
					}
					n, err := latex.CountPages(data)
					if err != nil {
						return errors.Wrap(err, path)
					}
					counts[i] = n
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			over := 0
			for i, path := range args {
				mark := ""
				if budget > 0 && counts[i] > budget {
					mark = " (over budget)"
					over++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d%s\n", path, counts[i], mark)
			}
			if over > 0 {
				return errors.Errorf("%d file(s) exceed %d page(s)", over, budget)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "Fail when a file has more pages than this")
	return cmd
}
