package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gap_service/internal/config"
	"gap_service/internal/infrastructure/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
}

// state is filled by the root pre-run hook and shared by every subcommand.
type state struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rt := &state{}

	cmd := &cobra.Command{
		Use:   "gap",
		Short: "Market gap analysis for local businesses",
		Long: "gap geocodes a location, counts businesses of every category of a domain\n" +
			"around it and ranks the categories by how under-served they are.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (YAML)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	cmd.AddCommand(
		newServeCommand(rt),
		newAnalyzeCommand(rt),
		newScanCommand(rt),
		newDomainsCommand(rt),
	)
	return cmd
}

func (rt *state) init(opts *rootOptions) error {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	rt.cfg = cfg
	rt.log = log
	return nil
}
