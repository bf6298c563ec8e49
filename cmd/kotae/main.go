// Package main is the Kotae CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fetch"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerAddr = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, a
// config.yaml in the current directory takes precedence so that running
// from the project dir picks up the local config. Returns the config and
// the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env file is fine; exported variables still apply.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "items":
		runItems()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired server-side dependencies.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Generator answer.Generator
	Ingester  *ingest.Ingester
	Engine    *rag.Engine
}

// Close releases component resources in reverse dependency order.
func (c *Components) Close() {
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	case "onnx":
		return embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     os.Getenv(cfg.Embedding.APIKeyEnv),
			Model:      cfg.Embedding.Model,
			Timeout:    cfg.Embedding.Timeout(),
			Dimensions: cfg.Embedding.Dimensions,
			CacheSize:  cfg.Embedding.CacheSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	generator, err := answer.NewOpenAIGenerator(answer.OpenAIConfig{
		BaseURL: cfg.Answer.BaseURL,
		APIKey:  os.Getenv(cfg.Answer.APIKeyEnv),
		Model:   cfg.Answer.Model,
		Timeout: cfg.Answer.Timeout(),
	})
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize answer client (set %s): %w", cfg.Answer.APIKeyEnv, err)
	}

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		_ = generator.Close()
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	fetcher := fetch.NewFetcher(cfg.Fetch.Timeout(), cfg.Fetch.MaxBodyBytes)
	ingester := ingest.NewIngester(store, embedder, ch, fetcher, extract.NewExtractor(), logger)
	engine := rag.NewEngine(store, embedder, generator, cfg.Retrieval.TopK, logger)

	return &Components{
		Storage:   store,
		Embedder:  embedder,
		Generator: generator,
		Ingester:  ingester,
		Engine:    engine,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		ing := components.Ingester
		watchSvc = watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := ing.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExisting()
	}

	srv := server.NewServer(
		components.Ingester,
		components.Engine,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	addr := fs.String("addr", defaultServerAddr, "server address")
	kind := fs.String("type", "note", "item type: note or url")
	_ = fs.Parse(os.Args[2:])

	content := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if content == "" {
		fmt.Println("Usage: kotae ingest [--type note|url] <content>")
		os.Exit(1)
	}

	client := cli.NewClient(*addr)
	if err := client.Ingest(context.Background(), models.ItemKind(*kind), content); err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	addr := fs.String("addr", defaultServerAddr, "server address")
	topK := fs.Int("top-k", 0, "number of sources to retrieve (0 = server default)")
	jsonOut := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: kotae query [--top-k N] [--json] <question>")
		os.Exit(1)
	}

	client := cli.NewClient(*addr)
	resp, err := client.Query(context.Background(), question, *topK)
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		os.Exit(1)
	}
	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}
	_ = cli.WriteQueryResult(os.Stdout, resp, format)
}

func runItems() {
	fs := flag.NewFlagSet("items", flag.ExitOnError)
	addr := fs.String("addr", defaultServerAddr, "server address")
	jsonOut := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(os.Args[2:])

	client := cli.NewClient(*addr)
	items, err := client.Items(context.Background())
	if err != nil {
		fmt.Printf("Failed to list items: %v\n", err)
		os.Exit(1)
	}
	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}
	_ = cli.WriteItems(os.Stdout, items, format)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", defaultServerAddr, "server address")
	_ = fs.Parse(os.Args[2:])

	client := cli.NewClient(*addr)
	status, err := client.Status(context.Background())
	if err != nil {
		fmt.Printf("Failed to fetch status: %v\n", err)
		os.Exit(1)
	}
	for _, key := range []string{"items", "chunks"} {
		if v, ok := status[key]; ok {
			fmt.Printf("%s: %v\n", key, v)
		}
	}
	if cfg, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("config:")
		for k, v := range cfg {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
}

func printUsage() {
	fmt.Println(`kotae - ask questions over your own notes and pages

Usage:
  kotae server [--config path] [--debug]     start the HTTP server
  kotae ingest [--type note|url] <content>   ingest a note or url
  kotae query [--top-k N] [--json] <question>
  kotae items [--json]                       list ingested items
  kotae status                               show server counters
  kotae version
  kotae help

Client commands accept --addr (default http://localhost:8080).`)
}
