package reportserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Config captures the settings for serving evaluation reports.
type Config struct {
	Addr string
	// RunsDir holds one directory per run, each with a summary.json.
	RunsDir string
	// DBPath optionally exposes the run store for download.
	DBPath string
	Logger *zap.SugaredLogger
}

// Serve renders run reports over HTTP until ctx is cancelled.
func Serve(ctx context.Context, cfg Config) error {
	if cfg.Addr == "" {
		return errors.New("reportserver: addr is required")
	}
	handler, err := NewHandler(cfg)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger.Infow("serving reports", "runs", cfg.RunsDir, "addr", ln.Addr().String())
	return serve(ctx, &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}, ln)
}

func serve(ctx context.Context, server *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		return ignoreClosed(err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ignoreClosed(<-errCh)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
