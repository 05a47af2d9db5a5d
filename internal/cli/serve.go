package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/councilhq/orchestrator/internal/config"
	"github.com/councilhq/orchestrator/internal/orchestrator"
	"github.com/councilhq/orchestrator/internal/stagerunner"
	"github.com/councilhq/orchestrator/internal/store"
	"github.com/councilhq/orchestrator/internal/store/memstore"
	"github.com/councilhq/orchestrator/internal/store/sqlitestore"
	"github.com/councilhq/orchestrator/internal/transport/httpapi"
	"github.com/councilhq/orchestrator/internal/transport/wsapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket council orchestration server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	rw, err := config.NewRegistryWatcher(configPath, func(err error) {
		logger.Error("serve: config reload failed, keeping previous catalog", "error", err)
	})
	if err != nil {
		return fmt.Errorf("serve: loading config: %w", err)
	}
	defer rw.Close()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("serve: loading config: %w", err)
	}

	router, err := cfg.BuildRouter()
	if err != nil {
		return fmt.Errorf("serve: building model router: %w", err)
	}

	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("serve: building store: %w", err)
	}
	if closer, ok := st.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	orch := orchestrator.New(rw.Catalog(), router, st, orchestratorConfig(cfg), logger)

	httpSrv := httpapi.New(orch, st, rw.Catalog, router, logger)
	httpSrv.DefaultModels = cfg.DefaultModels
	httpSrv.Temperature = cfg.Temperature
	httpSrv.MaxTokens = cfg.MaxTokens
	wsSrv := wsapi.New(orch, logger)
	wsSrv.DefaultModels = cfg.DefaultModels

	r := httpSrv.Router()
	r.Get("/ws/conversations/{id}/messages", wsSrv.Handler)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serve: listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCh:
		logger.Info("serve: shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// orchestratorConfig builds orchestrator.Config from the loaded Config's
// millisecond fields, per SPEC_FULL.md's shared timeout vocabulary.
func orchestratorConfig(cfg config.Config) orchestrator.Config {
	return orchestrator.Config{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeouts: stagerunner.Timeouts{
			PerCall: cfg.PerCallTimeout(),
			Stage1:  cfg.Stage1Deadline(),
			Stage2:  cfg.Stage2Deadline(),
			Stage3:  cfg.Stage3Deadline(),
		},
		TurnDeadline: cfg.TurnDeadline(),
		BufferSize:   cfg.OutputBufferSize,
	}
}

func buildStore(cfg config.Config) (store.ConversationStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.New(), nil
	case "sqlite", "":
		return sqlitestore.Open(cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("serve: unknown store driver %q", cfg.Store.Driver)
	}
}
