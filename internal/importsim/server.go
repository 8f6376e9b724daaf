package importsim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/autolot/dealer-admin/internal/config"
	"github.com/autolot/dealer-admin/pkg/log"
	"github.com/autolot/dealer-admin/pkg/metrics"
	"github.com/autolot/dealer-admin/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/lthibault/jitterbug/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	minSweepInterval        = time.Second
)

// Server is a local stand-in for the dealer API bulk import endpoints.
type Server struct {
	cfg       *config.SimConfig
	listener  net.Listener
	store     *Store
	processor *Processor
	router    chi.Router
}

// New builds the simulator. Metrics are registered on reg, which is usually
// prometheus.DefaultRegisterer.
func New(cfg *config.SimConfig, listener net.Listener, logger *zap.Logger, reg prometheus.Registerer) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		listener: listener,
		store:    NewStore(),
	}
	s.processor = NewProcessor(s.store, cfg.ProcessDelay)

	metricMiddleware := metrics.NewMiddleware("import_sim")
	if err := metricMiddleware.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}
	if err := metrics.RegisterStatsCollector(reg, s.store); err != nil {
		return nil, fmt.Errorf("failed to register stats collector: %w", err)
	}

	router := chi.NewRouter()
	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}),
		middleware.RequestID,
		log.Logger(logger, "import_sim"),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := NewHandler(s.store, s.processor, cfg.MaxUploadBytes)
	if cfg.BasePath == "" || cfg.BasePath == "/" {
		h.Routes(router)
	} else {
		router.Route(cfg.BasePath, h.Routes)
	}

	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := http.Server{Addr: s.cfg.Address, Handler: s.router}

	go s.sweep(ctx)

	go func() {
		<-ctx.Done()
		zap.S().Named("import_sim").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("import_sim").Info("import simulator terminated")
	}()

	zap.S().Named("import_sim").Infof("Listening on %s...", s.listener.Addr().String())
	err := srv.Serve(s.listener)
	s.processor.Stop()
	if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Close stops background commits. Run does this on its own.
func (s *Server) Close() {
	s.processor.Stop()
}

// sweep drops idle sessions older than the configured TTL.
func (s *Server) sweep(ctx context.Context) {
	interval := s.cfg.SessionTTL / 4
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.ExpireSessions(time.Now().Add(-s.cfg.SessionTTL)); n > 0 {
				zap.S().Named("import_sim").Infow("expired import sessions", "count", n)
			}
		}
	}
}
