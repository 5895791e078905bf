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
	completiongrpc "semantic_cache/completion/grpc"
	"semantic_cache/config"
	"semantic_cache/logging"
	"semantic_cache/rpc"
)

const defaultPort = "50053"

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
	if cfg.Completion.Provider == "grpc" {
		return fmt.Errorf("COMPL_PROVIDER=grpc would make the completion service call itself")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	completionService, closeCompletion, err := bootstrap.NewCompleter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCompletion()

	port := cfg.GRPCPort
	if port == "" {
		port = defaultPort
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s := rpc.NewServer(logger.Named("rpc"))
	completiongrpc.NewServer(completionService).Register(s)

	logger.Info("completion gRPC server listening", zap.String("port", port), zap.String("provider", cfg.Completion.Provider))
	return rpc.Serve(ctx, s, lis)
}
