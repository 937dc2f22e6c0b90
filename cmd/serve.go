package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alanwang67/activation_registry/config"
	"github.com/alanwang67/activation_registry/metrics"
	"github.com/alanwang67/activation_registry/protocol"
	"github.com/alanwang67/activation_registry/repository"
	"github.com/alanwang67/activation_registry/server"
	"github.com/alanwang67/activation_registry/storage"
)

func newServeCmd() *cobra.Command {
	var (
		dbDir       string
		listen      string
		metricsAddr string
		inMemory    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the registry daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db-dir") {
				cfg.DBDir = dbDir
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}
			if cmd.Flags().Changed("metrics") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("in-memory") {
				cfg.InMemory = inMemory
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&dbDir, "db-dir", "", "Database directory")
	cmd.Flags().StringVar(&listen, "listen", "", "RPC listen address")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Prometheus listen address, empty to disable")
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "Keep the registry in memory only")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	var store storage.Store
	if cfg.InMemory {
		store = storage.NewMemStore()
	} else {
		fs, err := storage.Open(cfg.DBDir, storage.Options{
			Passphrase:   cfg.Passphrase,
			LittleEndian: cfg.LittleEndian,
		})
		if err != nil {
			return err
		}
		store = fs
	}

	m := metrics.New()
	bootstrap := repository.StaticBootstrap{Host: cfg.Bootstrap.Host, Port: cfg.Bootstrap.Port}
	log.Debugf("verifying registrations against bootstrap %s:%d", bootstrap.Host, bootstrap.Port)
	repo, err := repository.New(store,
		repository.WithLogger(log.Default().WithPrefix("repository")),
		repository.WithMetrics(m),
		repository.WithVerifier(&repository.EndpointVerifier{
			Locator: bootstrap,
		}),
	)
	if err != nil {
		store.Close()
		return err
	}
	defer repo.Close()

	self := &protocol.Connection{Network: "tcp", Address: cfg.ListenAddr}
	srv, err := server.New(self, repo,
		server.WithAcceptRate(cfg.AcceptRate, cfg.AcceptBurst),
		server.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		hs := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Debugf("metrics listening on %s", cfg.MetricsAddr)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
