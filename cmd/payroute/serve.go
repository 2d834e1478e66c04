package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/payroute"
	"github.com/hupe1980/payroute/metrics"
	"github.com/hupe1980/payroute/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := prometheus.NewRegistry()
			registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

			m, err := metrics.New(registry)
			if err != nil {
				return err
			}

			cfg, router, logger, err := a.setup(func(o *payroute.Options) { o.Metrics = m })
			if err != nil {
				return err
			}

			store, release, err := sessionStore(cfg)
			if err != nil {
				return err
			}
			defer release()

			if addr == "" {
				addr = cfg.Server.Addr
			}

			handler := server.NewHandler(router, func(o *server.Options) {
				o.Sessions = store
				o.Gatherer = registry
				o.Logger = logger.WithComponent("server")
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.ListenAndServe(ctx, addr, handler, logger.WithComponent("server"))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}
