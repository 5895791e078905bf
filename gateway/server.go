// Package gateway is the HTTP surface of the semantic cache: a plain
// question endpoint and an OpenAI-compatible chat completion endpoint,
// both answered through the decision engine.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"semantic_cache/engine"
)

const shutdownTimeout = 10 * time.Second

// Answerer is implemented by *engine.Engine
type Answerer interface {
	Answer(ctx context.Context, question string) (*engine.Result, error)
}

type Server struct {
	answerer Answerer
	logger   *zap.Logger
	router   *gin.Engine
	now      func() time.Time
}

// New builds the router. gatherer may be nil to leave /metrics out.
func New(answerer Answerer, logger *zap.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		answerer: answerer,
		logger:   logger,
		now:      time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), cors())
	r.POST("/ask", s.handleAsk)
	r.POST("/v1/chat/completions", s.handleChatCompletion)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
