package workers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"golockbridge/workers/handlers"
)

func NewRouter(h *handlers.Handlers, metrics http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Options("/*", CORSHeaders)

	r.Get("/state", h.State)
	r.Get("/health", h.HealthCheck)

	r.Get("/quote", h.Quote)
	r.Post("/bridge", h.SubmitLock)
	r.Post("/watch", h.Watch)

	r.Get("/records/{id}", h.GetRecord)
	r.Get("/status/{lockId}", h.LockStatus)
	r.Get("/stats/failed", h.GetFailedTransactions)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

type HTTPConfig struct {
	ListenAddr string
	UseSSL     bool
	CertFile   string
	KeyFile    string
}

// ServeHTTP runs the API until ctx is cancelled, then shuts down gracefully
func ServeHTTP(ctx context.Context, cfg HTTPConfig, handler http.Handler, logger *zap.Logger) error {
	logger.Info("starting HTTP service", zap.String("addr", cfg.ListenAddr), zap.Bool("ssl", cfg.UseSSL))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.UseSSL {
		if cfg.CertFile == "" {
			cfg.CertFile, cfg.KeyFile = "certchain.pem", "privatekey.pem"
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return fmt.Errorf("error loading TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.UseSSL {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("HTTP service started")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("error listening to %s: %w", cfg.ListenAddr, err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("HTTP service stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP service shutdown error: %w", err)
	}
	logger.Info("HTTP service shutdown normal")
	return nil
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, X-Requested-With")
}
