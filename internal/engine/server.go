package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-engine/internal/engine/handler"
	"github.com/kart-io/knowledge-engine/internal/engine/router"
	httpopts "github.com/kart-io/knowledge-engine/pkg/options/server/http"
)

// shutdownTimeout 优雅停机等待进行中请求的时间上限。
const shutdownTimeout = 15 * time.Second

// runServer 启动 HTTP 服务器并阻塞到收到退出信号。
func runServer(opts *httpopts.Options, h *handler.KnowledgeHandler) error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	router.Register(engine, h)

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      engine,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("HTTP server stopped")
	return nil
}
