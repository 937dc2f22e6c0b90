package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/alanwang67/activation_registry/client"
	"github.com/alanwang67/activation_registry/config"
	"github.com/alanwang67/activation_registry/protocol"
	"github.com/alanwang67/activation_registry/registry"
)

var (
	configPath string
	serverAddr string
	debug      bool
	timeout    time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "orbd",
		Short:         "Activation registry daemon and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "Registry daemon address (default from config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log every registry operation")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Deadline for client calls")

	rootCmd.AddCommand(newServeCmd(), newBenchCmd(), newGIOPCmd())
	rootCmd.AddCommand(newAdminCmds()...)
	return rootCmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return cfg, nil
}

// dial connects to --server, or the configured listen address.
func dial(ctx context.Context) (*client.Client, error) {
	addr := serverAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		addr = cfg.ListenAddr
	}
	c, err := client.Dial(ctx, &protocol.Connection{Network: "tcp", Address: addr})
	if err != nil {
		return nil, fmt.Errorf("trouble dialing %s: %w", addr, err)
	}
	return c, nil
}

func parseID(s string) (registry.ServerID, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return registry.NoServerID, fmt.Errorf("trouble converting %s to a server id: %w", s, err)
	}
	return registry.ServerID(id), nil
}
