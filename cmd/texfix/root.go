package main

import (
	"os"

	"github.com/spf13/cobra"

	"resumetex/internal/config"
	"resumetex/internal/logging"
)

type rootOptions struct {
	configPath string
	jobs       int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "texfix",
		Short: "Sanitize, repair and compile generated resume LaTeX",
		Long: `texfix runs the resume LaTeX pipeline stages by hand.

Example:
  texfix sanitize resume.tex
  texfix sanitize --write out/*.tex
  texfix repair resume.tex --log resume.log
  texfix compile resume.tex -o resume.pdf
  texfix pages out/*.pdf`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "Configuration file")
	cmd.PersistentFlags().IntVarP(&opts.jobs, "jobs", "j", 4, "Files processed concurrently in batch mode")

	cmd.AddCommand(
		newSanitizeCmd(opts),
		newRepairCmd(opts),
		newCompileCmd(opts),
		newPagesCmd(opts),
	)
	return cmd
}

// load reads configuration and routes logs to stderr so stdout stays clean
// for document output.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Logging.Adapters = nil
	cfg.Logging.Output = "stderr"
	if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	if err := logging.InitializeLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) limit() int {
	if o.jobs <= 0 {
		return 1
	}
	return o.jobs
}
