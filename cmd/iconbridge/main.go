package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/broker"
	"github.com/hellooo-cards/iconbridge/internal/browser"
	"github.com/hellooo-cards/iconbridge/internal/bus"
	"github.com/hellooo-cards/iconbridge/internal/common/config"
	"github.com/hellooo-cards/iconbridge/internal/fetcher"
	"github.com/hellooo-cards/iconbridge/internal/imaging"
	"github.com/hellooo-cards/iconbridge/internal/server"
	"github.com/hellooo-cards/iconbridge/internal/session"
	"github.com/hellooo-cards/iconbridge/pkg/logger"
	"github.com/hellooo-cards/iconbridge/pkg/metrics"
	"github.com/hellooo-cards/iconbridge/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of iconbridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("iconbridge version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "iconbridge",
		Short: "Profile icon collection broker",
		Long:  `iconbridge drives a browser to collect social profile icons in batches and relays the results to requesting clients`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "configs/iconbridge.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting iconbridge",
		zap.String("version", version.Get()),
		zap.String("conf", configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bus.NewBus(ctx, zapLogger, &cfg.Bus)
	if err != nil {
		zapLogger.Fatal("failed to initialize bus", zap.Error(err))
	}
	defer func() { _ = b.Close() }()

	registry := session.NewMemoryRegistry(zapLogger)

	driver, err := browser.NewDriver(ctx, zapLogger, cfg.Browser)
	if err != nil {
		zapLogger.Fatal("failed to start browser", zap.Error(err))
	}
	defer driver.Shutdown()

	m := metrics.New(cfg.Metrics)
	enc := imaging.NewEncoder(zapLogger, nil)
	f := fetcher.New(zapLogger, b, driver, driver, enc, m, cfg.Fetcher)
	br := broker.New(ctx, zapLogger, b, registry, f, driver, m)

	srv := server.New(zapLogger, br, b, registry, m, cfg.Server)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("received shutdown signal")
	case err := <-errChan:
		if err != nil {
			zapLogger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("failed to shutdown server", zap.Error(err))
	}
	zapLogger.Info("iconbridge stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
