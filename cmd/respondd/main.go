package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/kestrelhq/respond/internal/api"
	"github.com/kestrelhq/respond/internal/build"
	"github.com/kestrelhq/respond/internal/conf"
	"github.com/kestrelhq/respond/internal/files"
	"github.com/kestrelhq/respond/internal/httpclient"
	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/orchestrator"
	"github.com/kestrelhq/respond/internal/provider/anthropic"
	"github.com/kestrelhq/respond/internal/provider/openaicompat"
	"github.com/kestrelhq/respond/internal/store"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Println(build.Version)
			return
		case "build-info":
			fmt.Println(build.GetBuildInfo())
			return
		}
	}

	startServer()
}

type fxLogger struct{}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func startServer() {
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxLogger{} }),
		fx.Provide(conf.Load),
		fx.Provide(newStore),
		fx.Provide(newResolver),
		fx.Provide(newFiles),
		fx.Provide(newOrchestrator),
		fx.Provide(newAPIServer),
		fx.Invoke(func(cfg conf.Config) {
			log.SetGlobalConfig(cfg.Log)
		}),
		fx.Invoke(setupRoutes),
		fx.Invoke(registerLifecycle),
	)

	app.Run()
}

func newStore(cfg conf.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemory(), nil
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pg := store.NewPostgres(pool)
	if err := pg.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return pg, nil
}

func newResolver(cfg conf.Config) *llmcore.Resolver {
	resolver := llmcore.NewResolver()
	client := httpclient.New()

	if cfg.Anthropic.APIKey != "" {
		anthropicConfig := anthropic.Config{BaseURL: cfg.Anthropic.BaseURL, APIKey: cfg.Anthropic.APIKey}
		adapter := anthropic.New(anthropicConfig, client)

		resolver.Register("claude-", adapter.Name(), cfg.Anthropic.Models, func(string) (llmcore.Adapter, error) { return adapter, nil })
	}

	if cfg.OpenAICompat.APIKey != "" {
		openaiConfig := openaicompat.Config{BaseURL: cfg.OpenAICompat.BaseURL, APIKey: cfg.OpenAICompat.APIKey}
		adapter := openaicompat.New(openaiConfig, client)

		resolver.Register("", adapter.Name(), cfg.OpenAICompat.Models, func(string) (llmcore.Adapter, error) { return adapter, nil })
	}

	return resolver
}

func newFiles(cfg conf.Config) (*files.Store, error) {
	filesConfig := files.Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Endpoint:        cfg.S3.Endpoint,
	}

	return files.New(context.Background(), filesConfig)
}

func newOrchestrator(cfg conf.Config, resolver *llmcore.Resolver, st store.Store) *orchestrator.Orchestrator {
	pool := orchestrator.NewBackgroundPool(int64(cfg.BackgroundWorkers))
	return orchestrator.New(resolver, st, cfg.CheckpointDebounce, pool)
}

func newAPIServer(cfg conf.Config) *api.Server {
	apiConfig := api.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		ReadTimeout:       cfg.RequestTimeout,
		RequestTimeout:    cfg.RequestTimeout,
		LLMRequestTimeout: cfg.LLMRequestTimeout,
		APIKeys:           cfg.APIKeys,
		CORS:              api.CORS{Enabled: cfg.CORSAllowedAll, AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST", "DELETE"}, AllowedHeaders: []string{"Authorization", "Content-Type"}},
		Trace:             cfg.Trace,
	}

	return api.New(apiConfig)
}

func setupRoutes(server *api.Server, resolver *llmcore.Resolver, orch *orchestrator.Orchestrator, fileStore *files.Store) {
	handlers := api.Handlers{
		Responses:       api.NewResponsesHandlers(orch),
		Models:          api.NewModelsHandlers(resolver),
		Files:           api.NewFilesHandlers(fileStore),
		ChatCompletions: api.NewChatCompletionsHandlers(orch),
	}

	api.SetupRoutes(server, handlers)
}

func registerLifecycle(lc fx.Lifecycle, server *api.Server, st store.Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Run(); err != nil {
					log.Error(context.Background(), "server run error", log.Cause(err))
					os.Exit(1)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil {
				log.Error(ctx, "server shutdown error", log.Cause(err))
			}

			if err := st.Close(); err != nil {
				log.Error(ctx, "store close error", log.Cause(err))
			}

			return nil
		},
	})
}
