package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ipushpie/rag-service/api"
	"github.com/ipushpie/rag-service/config"
	"github.com/ipushpie/rag-service/database"
	"github.com/ipushpie/rag-service/monitor"
	"github.com/ipushpie/rag-service/pipeline"
	"github.com/ipushpie/rag-service/ragflow"
	"github.com/ipushpie/rag-service/source"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(logger, os.Args[2:])
	case "process":
		processCmd(logger, os.Args[2:])
	case "monitor":
		monitorCmd(logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := flags.String("config", "", "path to optional YAML config file")
	addr := flags.String("addr", "", "listen address (overrides config)")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	cfg := loadConfig(logger, *configFile)
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipe, pgPool, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup pipeline: %v", err)
	}
	defer pgPool.Close()

	ragClient := ragflow.NewClient(cfg.BaseURL, cfg.DatasetID, cfg.APIKey, logger)
	server := api.New(cfg, pipe, ragClient, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func processCmd(logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("process", flag.ExitOnError)
	configFile := flags.String("config", "", "path to optional YAML config file")
	id := flags.String("id", "", "document identifier at the origin")
	src := flags.String("source", source.SourcePostgres, "document source (postgres or minio)")
	monitored := flags.Bool("monitor", false, "wait for chunking and request a summary")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse process flags: %v", err)
	}

	if *id == "" {
		logger.Fatal("document id is required (-id)")
	}

	cfg := loadConfig(logger, *configFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipe, pgPool, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup pipeline: %v", err)
	}
	defer pgPool.Close()

	ref := source.DocumentRef{ID: *id, Source: *src}

	if !*monitored {
		docID, err := pipe.Process(ctx, ref)
		if err != nil {
			logger.Fatalf("process failed: %v", err)
		}
		fmt.Println(docID)
		return
	}

	result, err := pipe.ProcessWithMonitoring(ctx, ref)
	if err != nil {
		logger.Fatalf("process failed: %v", err)
	}

	fmt.Printf("document: %s\n", result.DocumentID)
	fmt.Printf("outcome:  %s (%s)\n", result.Monitoring.Outcome, result.Monitoring.Elapsed.Round(time.Millisecond))
	if result.AssistantID != "" {
		fmt.Printf("assistant: %s\n", result.AssistantID)
	}
	if result.SessionID != "" {
		fmt.Printf("session:   %s\n", result.SessionID)
	}
	if result.Summary != "" {
		fmt.Println()
		fmt.Println(result.Summary)
	}
}

func monitorCmd(logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("monitor", flag.ExitOnError)
	configFile := flags.String("config", "", "path to optional YAML config file")
	id := flags.String("id", "", "remote document id to monitor")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse monitor flags: %v", err)
	}

	if *id == "" {
		logger.Fatal("remote document id is required (-id)")
	}

	cfg := loadConfig(logger, *configFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ragClient := ragflow.NewClient(cfg.BaseURL, cfg.DatasetID, cfg.APIKey, logger)
	waiter := monitor.New(ragClient, monitor.Options{
		Interval: cfg.PollInterval,
		MaxWait:  cfg.MaxWaitTime,
	}, logger)

	result := waiter.Wait(ctx, *id)

	fmt.Printf("outcome: %s (%s)\n", result.Outcome, result.Elapsed.Round(time.Millisecond))
	if result.Snapshot != nil {
		fmt.Printf("status:   %s\n", result.Snapshot.Status)
		fmt.Printf("progress: %.0f%%\n", result.Snapshot.Progress*100)
		if result.Snapshot.Message != "" {
			fmt.Printf("message:  %s\n", result.Snapshot.Message)
		}
	}
}

func loadConfig(logger *log.Logger, path string) config.Config {
	cfg := config.Load()
	if path == "" {
		return cfg
	}

	cfg, err := config.LoadFile(path, cfg)
	if err != nil {
		logger.Fatalf("load config file: %v", err)
	}
	return cfg
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *log.Logger) (*pipeline.Service, *pgxpool.Pool, error) {
	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connection: %w", err)
	}

	var objects source.ObjectStore
	minioClient, err := database.NewMinioClient(cfg.Minio)
	if err != nil {
		logger.Printf("minio backend unavailable: %v", err)
	} else {
		objects = source.NewMinioStore(minioClient)
	}

	adapter := source.NewAdapter(source.NewPostgresStore(pgPool), objects, cfg.Minio.Bucket, logger)
	ragClient := ragflow.NewClient(cfg.BaseURL, cfg.DatasetID, cfg.APIKey, logger)
	waiter := monitor.New(ragClient, monitor.Options{
		Interval: cfg.PollInterval,
		MaxWait:  cfg.MaxWaitTime,
	}, logger)

	return pipeline.NewService(adapter, ragClient, waiter, cfg.DatasetID, cfg.ChunkMethod, logger), pgPool, nil
}

func printUsage() {
	fmt.Println("Usage: rag-service <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the HTTP API server")
	fmt.Println("  process  Fetch one document and trigger ingestion (use -monitor to wait and summarize)")
	fmt.Println("  monitor  Poll chunking progress for an already uploaded document")
}
