package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/payroute"
	"github.com/hupe1980/payroute/config"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/session"
	"github.com/hupe1980/payroute/session/redis"
	"github.com/spf13/cobra"
)

// RouterFactory builds the router for a loaded configuration.
type RouterFactory func(cfg *config.Config, opts payroute.Options) (*payroute.Router, error)

// app carries the injectable dependencies of all commands.
type app struct {
	newRouter RouterFactory
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer

	configPath string
	logLevel   string
}

func newApp() *app {
	return &app{
		newRouter: func(cfg *config.Config, opts payroute.Options) (*payroute.Router, error) {
			return payroute.NewFromConfig(cfg, func(o *payroute.FactoryOptions) { o.Options = opts })
		},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "payroute",
		Short:         "payroute routes purchase requests to MCP payment tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("PAYROUTE_CONFIG"), "configuration file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newRunCmd(a),
		newReplCmd(a),
		newServeCmd(a),
		newToolsCmd(a),
		newGraphCmd(a),
	)

	return cmd
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	return cfg, nil
}

func (a *app) logger(cfg *config.Config) (*logging.RouterLogger, error) {
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, err
	}
	lc.Output = a.stderr
	return logging.NewLogger(lc), nil
}

// setup loads the configuration and builds a router with a logger.
func (a *app) setup(optFns ...func(o *payroute.Options)) (*config.Config, *payroute.Router, *logging.RouterLogger, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := a.logger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := payroute.Options{Logger: logger.WithComponent("router")}
	for _, fn := range optFns {
		fn(&opts)
	}

	router, err := a.newRouter(cfg, opts)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, router, logger, nil
}

// sessionStore returns the Redis store when configured, else an in-memory
// one. The returned func releases it.
func sessionStore(cfg *config.Config) (session.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return session.NewInMemoryStore(cfg.Redis.Limit), func() {}, nil
	}

	store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		redis.WithPrefix(cfg.Redis.Prefix),
		redis.WithLimit(cfg.Redis.Limit),
	)

	return store, func() { _ = store.Close() }, nil
}
