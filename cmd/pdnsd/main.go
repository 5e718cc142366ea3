/**
 * pdnsd Daemon Entry Point.
 *
 * Boots the configuration, log sink and storage, then hands control to
 * the supervisor for the life of the process. Graceful shutdown on
 * SIGINT/SIGTERM, per spec.md §6's process interface.
 *
 * Author: raventrace
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raventrace/pdnsd/internal/config"
	"github.com/raventrace/pdnsd/internal/logging"
	"github.com/raventrace/pdnsd/internal/store"
	"github.com/raventrace/pdnsd/internal/supervisor"

	_ "github.com/raventrace/pdnsd/internal/plugins/authorized"
	_ "github.com/raventrace/pdnsd/internal/plugins/dnsstats"
	_ "github.com/raventrace/pdnsd/internal/plugins/geoplugin"
	_ "github.com/raventrace/pdnsd/internal/plugins/pktlogger"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "pdnsd",
		Short: "Passive DNS monitoring engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sink, err := logging.New()
	if err != nil {
		return fmt.Errorf("building log sink: %w", err)
	}
	defer sink.Sync()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		sink.Log(logging.Error, "failed to open store", zap.String("error", err.Error()))
		return err
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		sink.Log(logging.Error, "failed to migrate schema", zap.String("error", err.Error()))
		return err
	}

	sup := supervisor.New(cfg, st, sink, supervisor.Timeouts{})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sup.Run(ctx); err != nil {
		return err
	}
	return nil
}
