package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spot-exchange/internal/config"
	"spot-exchange/internal/db"
	"spot-exchange/internal/engine"
	"spot-exchange/internal/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "spot-exchange",
		Short:         "a minimal centralized spot exchange",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting spot exchange server")

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection")
		conn.Close()
	}()
	log.Info("database connection established")

	if err := db.Migrate(conn); err != nil {
		return err
	}
	log.Info("schema up to date")

	eng := engine.New(conn, engine.Options{
		AllowSelfTrade: cfg.AllowSelfTrade,
		InitialCash:    cfg.InitialCash,
	}, log)

	// One-shot bootstrap: the admin user exists before any traffic.
	if cfg.AdminAPIKey != "" {
		admin, err := eng.BootstrapAdmin(context.Background(), cfg.AdminName, cfg.AdminAPIKey)
		if err != nil {
			return err
		}
		log.Info("admin user ready", zap.String("user_id", admin.ID))
	}

	srv := server.New(eng, conn, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr))
		errCh <- srv.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	log.Info("shutdown signal received, draining requests")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
