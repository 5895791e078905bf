package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"semantic_cache/bootstrap"
	"semantic_cache/config"
	"semantic_cache/engine"
	"semantic_cache/gateway"
	"semantic_cache/logging"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "gateway",
		Short:         "semantic cache gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "optional .env file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "run the HTTP gateway",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStack(cmd.Context(), envFile, true, serve)
			},
		},
		&cobra.Command{
			Use:   "ask <question>...",
			Short: "answer questions through the cache",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStack(cmd.Context(), envFile, false, func(ctx context.Context, rt *app) error {
					return ask(ctx, rt, args)
				})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "print the number of cached answers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStack(cmd.Context(), envFile, false, stats)
			},
		},
		&cobra.Command{
			Use:   "inspect <id>",
			Short: "print one cached answer",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStack(cmd.Context(), envFile, false, func(ctx context.Context, rt *app) error {
					return inspect(ctx, rt, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "delete <id>...",
			Short: "delete cached answers by id",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStack(cmd.Context(), envFile, false, func(ctx context.Context, rt *app) error {
					return remove(ctx, rt, args)
				})
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "delete every cached answer",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStack(cmd.Context(), envFile, false, purge)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[Error] %s\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	components *bootstrap.Components
}

// withStack loads configuration, builds the components and runs fn
func withStack(ctx context.Context, envFile string, metrics bool, fn func(context.Context, *app) error) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt := &app{cfg: cfg, logger: logger}
	var reg prometheus.Registerer
	if metrics {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg = rt.registry
	}

	components, err := bootstrap.New(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("fail to close components", zap.Error(err))
		}
	}()
	rt.components = components
	return fn(ctx, rt)
}

func serve(ctx context.Context, rt *app) error {
	engineCfg := rt.components.Engine.Config()
	rt.logger.Info("starting gateway",
		zap.String("port", rt.cfg.ServePort),
		zap.Float32("threshold", engineCfg.Threshold),
		zap.Int("dimensions", engineCfg.Dimensions),
		zap.String("store", rt.cfg.Store.Backend))

	server := gateway.New(rt.components.Engine, rt.logger.Named("gateway"), rt.registry)
	return server.Run(ctx, ":"+rt.cfg.ServePort)
}

// ask answers every question concurrently and prints the results in
// argument order
func ask(ctx context.Context, rt *app, questions []string) error {
	results := make([]*engine.Result, len(questions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, q := range questions {
		g.Go(func() error {
			res, err := rt.components.Engine.Answer(ctx, q)
			if err != nil {
				return fmt.Errorf("question %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		fmt.Printf("%-9s %.4f %s\n", res.Source, res.Score, res.Answer)
	}
	return nil
}

func stats(ctx context.Context, rt *app) error {
	m, ok := rt.components.Maintainer()
	if !ok {
		return errors.New("store does not support maintenance")
	}
	n, err := m.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d cached answers in %s store\n", n, rt.cfg.Store.Backend)
	return nil
}

func inspect(ctx context.Context, rt *app, id string) error {
	m, ok := rt.components.Maintainer()
	if !ok {
		return errors.New("store does not support maintenance")
	}
	r, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("id:         %s\n", r.ID)
	fmt.Printf("created_at: %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Printf("model:      %s\n", r.Model)
	fmt.Printf("dimensions: %d\n", len(r.Vector))
	fmt.Printf("question:   %s\n", r.Question)
	fmt.Printf("answer:     %s\n", r.Answer)
	return nil
}

// remove deletes every id or, when one is unknown, none of them
func remove(ctx context.Context, rt *app, ids []string) error {
	m, ok := rt.components.Maintainer()
	if !ok {
		return errors.New("store does not support maintenance")
	}
	if err := m.Delete(ctx, ids...); err != nil {
		return err
	}
	fmt.Printf("deleted %d cached answers\n", len(ids))
	return nil
}

func purge(ctx context.Context, rt *app) error {
	m, ok := rt.components.Maintainer()
	if !ok {
		return errors.New("store does not support maintenance")
	}
	if err := m.Purge(ctx); err != nil {
		return err
	}
	fmt.Printf("purged %s store\n", rt.cfg.Store.Backend)
	return nil
}
