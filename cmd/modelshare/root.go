package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelshare/internal/batch"
	"modelshare/internal/config"
	"modelshare/internal/sharing"
)

// runtime options resolved from flags and the optional config file
var (
	cfg  config.Config
	zlog zerolog.Logger
)

// buildRootCmd constructs the modelshare command tree.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modelshare",
		Short:         "Share fitted models between processes through shared memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to a .toml/.yaml/.json config file")
	root.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error (overrides config)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			c, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg = c
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.LogLevel = lvl
		}
		setupLogging()
		return nil
	}

	root.AddCommand(buildSelftestCmd())
	root.AddCommand(buildResolveCmd())
	root.AddCommand(buildBenchCmd())
	return root
}

func setupLogging() {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		level = l
	}
	zlog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
	sharing.SetLogger(zlog)
	batch.SetLogger(zlog)
}

// selectStore honors the config: a pinned scratch dir or disabled shared
// memory forces the file-based store.
func selectStore(ctx *sharing.Context) sharing.ModelStore {
	if cfg.DisableSHM {
		if cfg.ScratchDir != "" {
			return sharing.NewFileStoreAt(ctx, cfg.ScratchDir)
		}
		return sharing.NewFileStore(ctx)
	}
	return sharing.SelectStore(ctx, false, false)
}
