package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/searchchat/searchchat/internal/api"
	"github.com/searchchat/searchchat/internal/config"
	"github.com/searchchat/searchchat/internal/events"
	"github.com/searchchat/searchchat/internal/llm"
	"github.com/searchchat/searchchat/internal/store"
	"github.com/searchchat/searchchat/internal/store/memory"
	"github.com/searchchat/searchchat/internal/store/postgres"
	"github.com/searchchat/searchchat/internal/store/sqlite"
	"github.com/searchchat/searchchat/internal/tools"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = config.Load
	newBroker  = events.NewBroker
	openStore  = func(cfg config.Config) (store.Store, error) {
		switch cfg.StoreDriver {
		case "sqlite":
			return sqlite.New(cfg.SQLitePath)
		case "postgres":
			return postgres.New(cfg.PostgresURL)
		case "memory":
			return memory.New(), nil
		default:
			return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
		}
	}
	newGateway = func(cfg config.Config) (*llm.OpenAIGateway, error) {
		return llm.NewOpenAIGateway(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.LLMBaseURL,
		})
	}
	newServer = func(st store.Store, gateway api.Gateway, runner api.ToolRunner, broker *events.Broker, cfg config.Config) server {
		return api.NewServer(st, gateway, runner, broker, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}
	executor := tools.NewExecutor(gateway, tools.Config{RelayURL: cfg.RelayURL})
	broker := newBroker()

	server := newServer(st, gateway, executor, broker, cfg)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("searchchat listening on %s", addr)
	if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
