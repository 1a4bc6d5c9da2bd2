package main

import (
	"fmt"
	"net/http"
	"time"

	"jine-api-go/cache"
	"jine-api-go/circuitbreaker"
	"jine-api-go/config"
	"jine-api-go/events"
	"jine-api-go/likes"
	"jine-api-go/logcolors"
	"jine-api-go/services/lyrics"
	"jine-api-go/services/saavn"
	"jine-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// server holds every service the handlers use. It is built once at
// startup and passed around instead of package globals.
type server struct {
	conf       config.Config
	adminKey   string
	bus        *events.Bus
	alerts     *events.AlertHandler
	stats      *stats.Stats
	statsStore *stats.Store
	cache      *cache.ResponseCache
	breaker    *circuitbreaker.CircuitBreaker
	saavn      *saavn.Client
	lyrics     *lyrics.Service
	likes      *likes.Store
}

// setupServices wires the event bus, stats, response cache, circuit
// breaker, metadata client, lyrics sessions and likes store from conf
func setupServices(conf config.Config) (*server, error) {
	s := &server{
		conf:     conf,
		adminKey: conf.Configuration.APIKey,
		bus:      events.NewBus(),
		stats:    stats.New(),
	}
	if s.adminKey == "" {
		s.adminKey = conf.Configuration.CacheAccessToken
	}

	s.alerts = events.NewAlertHandler(events.DefaultAlertCooldown)
	s.alerts.Start(s.bus)

	if conf.Configuration.StatsDBPath != "" {
		store, err := stats.NewStore(conf.Configuration.StatsDBPath, s.stats)
		if err != nil {
			return nil, err
		}
		if err := store.Load(); err != nil {
			log.Warnf("%s Failed to load persisted stats: %v", logcolors.LogStats, err)
		}
		s.statsStore = store
	}

	s.cache = cache.New(
		cache.WithTTL(conf.ResponseCacheTTL()),
		cache.WithCompression(conf.FeatureFlags.CacheCompression),
		cache.WithSingleFlight(conf.FeatureFlags.SingleFlight),
		cache.WithStats(s.stats),
		cache.WithEvents(s.bus),
	)
	log.Infof("%s Response cache TTL %v (compression: %v, single-flight: %v)",
		logcolors.LogCache, s.cache.TTL(), conf.FeatureFlags.CacheCompression, conf.FeatureFlags.SingleFlight)

	s.breaker = circuitbreaker.New(circuitbreaker.Config{
		Name:      "saavn",
		Threshold: conf.Configuration.CircuitBreakerThreshold,
		Cooldown:  conf.CircuitBreakerCooldown(),
		Events:    s.bus,
	})

	s.saavn = saavn.NewClient(conf.Configuration.SaavnBaseURL,
		saavn.WithHTTPClient(&http.Client{Timeout: conf.SaavnTimeout()}),
		saavn.WithCache(s.cache),
		saavn.WithBreaker(s.breaker),
		saavn.WithStats(s.stats),
	)

	s.lyrics = lyrics.NewService(lyrics.NewSessionManager(), s.saavn, s.bus, s.stats)

	likesStore, err := likes.Open(conf.Configuration.LikesDBPath, conf.Configuration.LikesBackupPath)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to open likes store: %w", err)
	}
	s.likes = likesStore

	return s, nil
}

// startBackground starts the stats auto-save and the idle session janitor
func (s *server) startBackground() {
	if s.statsStore != nil && s.conf.Configuration.StatsSaveIntervalSecs > 0 {
		s.statsStore.StartAutoSave(time.Duration(s.conf.Configuration.StatsSaveIntervalSecs) * time.Second)
	}
	if s.conf.Configuration.SessionSweepSecs > 0 && s.conf.Configuration.SessionIdleTimeoutSecs > 0 {
		s.lyrics.Sessions().StartJanitor(
			time.Duration(s.conf.Configuration.SessionSweepSecs)*time.Second,
			s.conf.SessionIdleTimeout(),
		)
	}
}

// close releases everything setupServices opened
func (s *server) close() {
	if s.lyrics != nil {
		s.lyrics.Sessions().Close()
	}
	if s.likes != nil {
		if err := s.likes.Close(); err != nil {
			log.Warnf("%s Failed to close likes store: %v", logcolors.LogLikes, err)
		}
	}
	if s.statsStore != nil {
		if err := s.statsStore.Close(); err != nil {
			log.Warnf("%s Failed to close stats store: %v", logcolors.LogStats, err)
		}
	}
}
