package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/policyreason"
)

type rootOptions struct {
	configPath string
	dbPath     string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "policyreason",
		Short: "Explainable insurance eligibility decisions over policy documents",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (JSON or YAML)")
	pf.StringVar(&opts.dbPath, "db", "", "database path (overrides config)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newIngestCommand(opts),
		newEvaluateCommand(opts),
		newEvalCommand(opts),
		newDocumentsCommand(opts),
	)
	return cmd
}

// loadConfig applies file, then environment, then flags.
func (o *rootOptions) loadConfig() (policyreason.Config, error) {
	cfg := policyreason.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = policyreason.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	return cfg, nil
}

func (o *rootOptions) openEngine() (policyreason.Engine, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	e, err := policyreason.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}
