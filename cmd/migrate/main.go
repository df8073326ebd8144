// Command migrate runs goose commands against the configured database.
//
//	migrate [up|down|status|version|redo|reset]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"qrattendance/internal/config"
	"qrattendance/internal/logging"
	"qrattendance/internal/store"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for the command")
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, command, flag.Args(), *timeout); err != nil {
		logger.Error("migration failed", zap.String("command", command), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.App, logger *zap.Logger, command string, args []string, timeout time.Duration) error {
	if cfg.StoreBackend != "postgres" {
		return fmt.Errorf("STORE_BACKEND=%s has no schema to migrate", cfg.StoreBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return err
	}
	defer db.Close()

	var extra []string
	if len(args) > 1 {
		extra = args[1:]
	}
	if err := store.RunMigrations(ctx, db, command, extra...); err != nil {
		return err
	}
	logger.Info("migration command finished", zap.String("command", command))
	return nil
}
