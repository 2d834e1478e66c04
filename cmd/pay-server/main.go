// Command pay-server serves the reference payment tools over MCP.
//
//	pay-server                         # stdio, for spawning by an MCP client
//	pay-server -t sse --addr 127.0.0.1:8765
//	pay-server -t http                 # streamable HTTP at /mcp
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/payroute/internal/payserver"
	"github.com/hupe1980/payroute/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		transport string
		addr      string
		legacy    bool
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:           "pay-server",
		Short:         "Serve the pay_amount MCP tool",
		Long:          "Starts the reference MCP pay server. stdio keeps stdout reserved for JSON-RPC; logs go to stderr.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}

			logger := logging.NewSlogLogger(level, "text", false).WithComponent("pay-server")

			srv := payserver.New(func(o *payserver.Options) {
				o.Legacy = legacy
				o.Logger = logger
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return payserver.Serve(ctx, srv, transport, addr, logger)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", payserver.TransportStdio, "transport: stdio, sse or http")
	cmd.Flags().StringVar(&addr, "addr", payserver.DefaultAddr, "listen address for sse and http")
	cmd.Flags().BoolVar(&legacy, "legacy", true, "also offer the command-string pay tool")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}
