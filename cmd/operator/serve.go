package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/operator/internal/automation"
	"github.com/haasonsaas/operator/internal/browserbase"
	"github.com/haasonsaas/operator/internal/config"
	"github.com/haasonsaas/operator/internal/executor"
	"github.com/haasonsaas/operator/internal/observability"
	"github.com/haasonsaas/operator/internal/operator"
	"github.com/haasonsaas/operator/internal/planner"
	"github.com/haasonsaas/operator/internal/runs"
	"github.com/haasonsaas/operator/internal/sessions"
	"github.com/haasonsaas/operator/internal/web"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Operator HTTP server",
		Long: `Start the Operator HTTP server.

The server exposes:
  POST   /api/agent     start an agent run, streaming progress as NDJSON
  POST   /api/sessions  create a hosted browser session
  DELETE /api/sessions  release a hosted browser session
  GET    /api/runs      recorded run history
  GET    /healthz       liveness
  GET    /metrics       Prometheus metrics

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("OPERATOR_CONFIG")
			}
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics(nil)

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	bbClient := browserbase.NewClient(cfg.Browserbase.APIKey,
		browserbase.WithBaseURL(cfg.Browserbase.BaseURL),
		browserbase.WithLogger(logger),
	)
	sessionManager := sessions.NewManager(bbClient, cfg.Browserbase.ProjectID, logger, metrics)

	connector := automation.NewPlaywrightConnector(planner.NewPageReasoner(provider), logger)
	actionExecutor := executor.New(connector, sessionManager, logger, metrics)
	stepPlanner := planner.New(provider, actionExecutor, logger, metrics)

	var runStore *runs.Store
	if cfg.Runs.Path != "" {
		runStore, err = runs.Open(cfg.Runs.Path)
		if err != nil {
			return err
		}
		defer runStore.Close()
	}

	loop := operator.New(sessionManager, actionExecutor, stepPlanner, runStore, logger, metrics)

	handler := web.NewHandler(&web.Config{
		AuthToken: cfg.Auth.Token,
		Sessions:  sessionManager,
		Loop:      loop,
		RunStore:  runStore,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler.Mount(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr, "provider", provider.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildProvider(cfg *config.Config) (planner.Provider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return planner.NewOpenAIProvider(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model, cfg.LLM.OpenAI.BaseURL), nil
	case "anthropic":
		return planner.NewAnthropicProvider(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model, cfg.LLM.Anthropic.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
