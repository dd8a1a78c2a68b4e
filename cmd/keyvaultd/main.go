// Command keyvaultd starts the key-value store: a directory actor plus
// the TCP connection handler in front of it. Flag parsing and the
// signal-driven shutdown sequence follow the teacher's cmd/server/main.go;
// the flags themselves are cobra's rather than the teacher's stdlib
// flag package (§10 ambient stack).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"keyvaultd/internal/directory"
	"keyvaultd/internal/server"
)

func main() {
	cfg := server.DefaultConfig()

	root := &cobra.Command{
		Use:   "keyvaultd",
		Short: "In-memory key-value store with an actor-per-key execution model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "address to bind to")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *server.Config) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	dir := directory.New(log)
	dir.Start()

	srv := server.New(cfg, dir, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
		srv.Shutdown()
	}()

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Error("server start failed")
		return err
	}
	return nil
}
