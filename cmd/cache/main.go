package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"semantic_cache/bootstrap"
	cachegrpc "semantic_cache/cache/grpc"
	"semantic_cache/config"
	"semantic_cache/logging"
	"semantic_cache/rpc"
)

const defaultPort = "50052"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[Error] %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if cfg.Store.Backend == "grpc" {
		return fmt.Errorf("CACHE_STORE=grpc would make the cache service call itself")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, closeStore, err := bootstrap.NewStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	port := cfg.GRPCPort
	if port == "" {
		port = defaultPort
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s := rpc.NewServer(logger.Named("rpc"))
	cachegrpc.NewServer(store).Register(s)

	logger.Info("cache gRPC server listening",
		zap.String("port", port),
		zap.String("backend", cfg.Store.Backend),
		zap.Int("dimensions", cfg.Cache.Dimensions))
	return rpc.Serve(ctx, s, lis)
}
