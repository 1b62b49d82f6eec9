// Command server wires the invoice pipeline's core (C1-C8) to its HTTP
// ingress (C9) and inbox worker (C10) front ends and runs until signalled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/layan-haddad/invoice-pipeline/internal/config"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/audit"
	httpapi "github.com/layan-haddad/invoice-pipeline/internal/pipeline/http"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/inbox"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/wiring"
	"github.com/layan-haddad/invoice-pipeline/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting invoice pipeline server", zap.String("version", "1.0.0"))

	auditLogger, err := audit.NewLogger(cfg.Pipeline.AuditLogPath, logger)
	if err != nil {
		logger.Fatal("failed to open audit log", zap.Error(err))
	}
	defer auditLogger.Close()

	orch := wiring.BuildOrchestrator(cfg, auditLogger, logger)

	inboxWorker := inbox.New(cfg.Pipeline.InboxDir, cfg.Pipeline.PollInterval, orch, logger)
	workers := inbox.NewManager(logger)
	workers.Register(inboxWorker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("failed to start background workers", zap.Error(err))
	}
	defer workers.StopAll()

	handlers := httpapi.NewHandlers(orch, cfg.Pipeline.AuditLogPath)
	server := httpapi.NewServer(httpapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		if err := server.Stop(); err != nil {
			logger.Error("error during server shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped with error", zap.Error(err))
		}
	}

	logger.Info("invoice pipeline server stopped")
}
