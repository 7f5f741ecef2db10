package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amberarrow/devolve/adminhttp"
	"github.com/amberarrow/devolve/boss"
	"github.com/amberarrow/devolve/config"
	"github.com/amberarrow/devolve/devolvelog"
)

func serveCmd() *cobra.Command {
	var port, queueSize int
	var adminAddr, configFile string
	var acceptTimeout, shutdownGrace time.Duration
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Start the boss, accepting workers and dispatching jobs",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []config.Option{}
			if cmd.Flags().Changed("port") {
				opts = append(opts, config.WithPort(port))
			}
			if cmd.Flags().Changed("queue-size") {
				opts = append(opts, config.WithQueueSize(queueSize))
			}
			if cmd.Flags().Changed("admin-addr") {
				opts = append(opts, config.WithAdminAddr(adminAddr))
			}
			if cmd.Flags().Changed("accept-timeout") {
				opts = append(opts, config.WithAcceptTimeout(acceptTimeout))
			}
			if cmd.Flags().Changed("shutdown-grace") {
				opts = append(opts, config.WithShutdownGrace(shutdownGrace))
			}

			var cfg *config.Config
			var err error
			if configFile != "" {
				cfg, err = config.LoadFile(configFile, opts...)
			} else {
				cfg, err = config.Load(opts...)
			}
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			pool := boss.New(cfg)
			if err := pool.Start(); err != nil {
				return fmt.Errorf("starting pool: %w", err)
			}

			admin := adminhttp.New(cfg.AdminAddr, pool, devolvelog.Default())
			admin.Start()
			defer admin.Shutdown(3 * time.Second)

			devolvelog.Info("serve: boss listening on %v, admin surface on %q", pool.Addr(), cfg.AdminAddr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			<-sigCh
			devolvelog.Info("serve: termination signal received, draining in-flight work")

			pool.Close()
			pool.Join()
			devolvelog.Info("serve: shutdown complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "TCP port to accept worker connections on")
	cmd.Flags().IntVar(&queueSize, "queue-size", config.DefaultQueueSize, "Bounded job queue capacity")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", config.DefaultAdminAddr, "Bind address for health/metrics HTTP surface, empty to disable")
	cmd.Flags().DurationVar(&acceptTimeout, "accept-timeout", config.DefaultAcceptTimeout, "How long Accept waits before rechecking for shutdown")
	cmd.Flags().DurationVar(&shutdownGrace, "shutdown-grace", config.DefaultShutdownGrace, "Grace period given to a worker to close after QUIT")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to a devolve.toml config file, overriding the default search path")
	return cmd
}
