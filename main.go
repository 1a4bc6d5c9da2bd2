package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jine-api-go/config"
	"jine-api-go/logcolors"
	"jine-api-go/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func main() {
	conf := config.Get()

	srv, err := setupServices(conf)
	if err != nil {
		log.Fatalf("%s Failed to start: %v", logcolors.LogServer, err)
	}
	defer srv.close()
	srv.startBackground()

	httpServer := &http.Server{
		Addr:              ":" + conf.Configuration.Port,
		Handler:           srv.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("%s Listening on port %s", logcolors.LogServer, conf.Configuration.Port)
		srv.bus.PublishServerStarted(conf.Configuration.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("%s Server error: %v", logcolors.LogServer, err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infof("%s Shutting down", logcolors.LogServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}
}

// handler builds the router and wraps it in the middleware chain:
// rate limiting, then CORS, then metrics and request logging
func (s *server) handler() http.Handler {
	router := mux.NewRouter()
	s.setupRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.conf.Configuration.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key", "Authorization"},
		ExposedHeaders:   []string{"X-Cache-Status", "X-RateLimit-Type", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
	})

	limiter := middleware.NewIPRateLimiter(
		rate.Limit(s.conf.Configuration.RateLimitPerSecond),
		s.conf.Configuration.RateLimitBurstLimit,
		rate.Limit(s.conf.Configuration.CachedRateLimitPerSecond),
		s.conf.Configuration.CachedRateLimitBurstLimit,
	)

	var h http.Handler = router
	h = middleware.MetricsMiddleware(s.stats, requestGroup)(h)
	h = middleware.LoggingMiddleware(h)
	h = c.Handler(h)
	h = middleware.RateLimitMiddleware(limiter, s.stats, s.adminKey)(h)
	return h
}
