package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/auth"
	"github.com/Nzyazin/miniwallet/internal/core/handler"
	"github.com/Nzyazin/miniwallet/internal/core/logger"
	middlWre "github.com/Nzyazin/miniwallet/internal/core/middleware"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/Nzyazin/miniwallet/internal/core/repository/memory"
	"github.com/Nzyazin/miniwallet/internal/core/repository/postgres"
	redisstore "github.com/Nzyazin/miniwallet/internal/core/repository/redis"
	"github.com/Nzyazin/miniwallet/internal/core/usecase"
	"github.com/Nzyazin/miniwallet/pkg/config"
	"github.com/Nzyazin/miniwallet/pkg/postgresdb"
	"github.com/Nzyazin/miniwallet/pkg/redisdb"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

type storage struct {
	ledger   repository.LedgerStore
	identity repository.IdentityStore
	ping     func(ctx context.Context) error
	close    func() error
}

type Server struct {
	router        *mux.Router
	log           logger.Logger
	httpServer    *http.Server
	walletHandler *handler.WalletHandler
	registry      *prometheus.Registry
	storage       storage
}

func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Server, error) {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewTokenIssuer(cfg.App.TokenSecret)
	if err != nil {
		_ = store.close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := usecase.NewPrometheusMetrics(registry)

	walletHandler := handler.NewWalletHandler(
		usecase.NewWalletLifecycle(store.ledger, store.identity, issuer, log, metrics),
		usecase.NewWalletUsecase(store.ledger, log, metrics),
		usecase.NewWalletQuery(store.ledger, log, metrics),
		log,
	)

	server := &Server{
		log:           log,
		router:        mux.NewRouter(),
		walletHandler: walletHandler,
		registry:      registry,
		storage:       store,
	}

	server.router.Use(loggingMiddleware(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{Registry: registry}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes(middlWre.Authenticate(issuer, store.identity, log))

	return server, nil
}

func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (storage, error) {
	switch cfg.App.StorageDriver {
	case config.StorageDriverPostgres:
		db, err := postgresdb.NewPostgresDB(ctx, cfg.DB, log)
		if err != nil {
			return storage{}, err
		}
		if err := postgres.Migrate(ctx, db.DB); err != nil {
			db.Close()
			return storage{}, fmt.Errorf("migrate: %w", err)
		}
		return storage{
			ledger:   postgres.NewPostgresWalletRepo(db.DB, log),
			identity: postgres.NewPostgresIdentityRepo(db.DB, log),
			ping:     db.PingContext,
			close:    db.Close,
		}, nil

	case config.StorageDriverRedis:
		rdb, err := redisdb.ConnectRedis(ctx, cfg.Redis, log)
		if err != nil {
			return storage{}, err
		}
		return storage{
			ledger:   redisstore.NewRedisWalletStore(rdb, log),
			identity: redisstore.NewRedisIdentityStore(rdb, log),
			ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close:    rdb.Close,
		}, nil

	case config.StorageDriverMemory:
		log.Warn("Using in-memory storage, data is lost on restart")
		return storage{
			ledger:   memory.NewWalletStore(),
			identity: memory.NewIdentityStore(),
			ping:     func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil

	default:
		return storage{}, fmt.Errorf("unknown storage driver %q", cfg.App.StorageDriver)
	}
}

func (s *Server) RegisterRoutes(authenticate mux.MiddlewareFunc) {
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)
	s.router.NotFoundHandler = middlWre.NotFound()
	s.router.MethodNotAllowedHandler = middlWre.MethodNotAllowed()

	s.walletHandler.RegisterRoutes(s.router, authenticate)
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.storage.ping(ctx); err != nil {
		s.log.Error("health check failed", logger.ErrorField("error", err))
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			err := s.httpServer.Shutdown(ctx)
			if err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if s.storage.close != nil {
			err := s.storage.close()
			if err != nil {
				s.log.Error("failed to close storage", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("storage shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}
