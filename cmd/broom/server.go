package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/streamguard/streamguard/automod/cachestore"
	"github.com/streamguard/streamguard/automod/consumer"
	"github.com/streamguard/streamguard/automod/countstore"
	"github.com/streamguard/streamguard/automod/detector"
	"github.com/streamguard/streamguard/automod/engine"
	"github.com/streamguard/streamguard/automod/setstore"
	"github.com/streamguard/streamguard/automod/strikes"
	"github.com/streamguard/streamguard/storage"
	"github.com/streamguard/streamguard/transport"
)

type Server struct {
	logger   *slog.Logger
	engine   *engine.Engine
	consumer *consumer.ChatConsumer
	rdb      *redis.Client
}

type Config struct {
	RelayWSHost      string
	RelayAPIHost     string
	RelayAuthToken   string
	RelayRateLimit   int
	DatabaseURL      string
	MaxDBConnections int
	RedisURL         string
	SetsFileJSON     string
	Channels         []string
	OwnerUsername    string
	Sensitivity      string
	DisableStrikes   bool
	StrikeExpireDays int
	MaxStrikes       int
	ExemptManualBans bool
	ActionCooldown   time.Duration
	SlackWebhookURL  string
	DryRun           bool
	Logger           *slog.Logger
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	db, err := storage.OpenDatabase(config.DatabaseURL, config.MaxDBConnections)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	store, err := storage.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	sets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %w", err)
		}
		logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		// generic client, for cursor state
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %w", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %w", err)
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, time.Minute)
	}

	det, err := detector.NewDetector(logger, config.Sensitivity)
	if err != nil {
		return nil, fmt.Errorf("initializing detector: %w", err)
	}
	// operator domain lists from the sets file feed the URL classifier
	for _, name := range []string{"whitelist", "blacklist", "shorteners", "tlds"} {
		if vals := sets.Values("domain-" + name); len(vals) > 0 {
			det.Links().Extend(name, vals)
			logger.Info("extended domain set", "set", name, "entries", len(vals))
		}
	}

	ledger := strikes.NewLedger(store, logger)
	if config.StrikeExpireDays > 0 {
		ledger.ExpireDays = config.StrikeExpireDays
	}
	if config.MaxStrikes > 0 {
		ledger.MaxStrikes = config.MaxStrikes
	}
	ledger.ExemptManualBans = config.ExemptManualBans

	var client transport.Client
	if config.DryRun {
		client = transport.NewNullClient(logger)
	} else {
		limit := rate.Limit(config.RelayRateLimit)
		if config.RelayRateLimit <= 0 {
			limit = rate.Inf
		}
		client = transport.NewRelayClient(config.RelayAPIHost, config.RelayAuthToken, rate.NewLimiter(limit, 1))
	}

	eng := engine.NewEngine(engine.Engine{
		Logger:          logger,
		Detector:        det,
		Strikes:         ledger,
		Counters:        counters,
		Cache:           cache,
		Sets:            sets,
		Store:           store,
		Client:          client,
		SlackWebhookURL: config.SlackWebhookURL,
		Config: engine.Config{
			OwnerUsername:  config.OwnerUsername,
			Enabled:        true,
			UseStrikes:     !config.DisableStrikes,
			ActionCooldown: config.ActionCooldown,
		},
	})

	s := &Server{
		logger: logger,
		engine: eng,
		rdb:    rdb,
		consumer: &consumer.ChatConsumer{
			Logger:      logger,
			RedisClient: rdb,
			Engine:      eng,
			Host:        config.RelayWSHost,
			AuthToken:   config.RelayAuthToken,
			Channels:    config.Channels,
		},
	}

	return s, nil
}

// Run consumes the chat stream until the context is canceled. The cursor
// persist loop runs alongside when redis is configured.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		if err := s.consumer.RunPersistCursor(ctx); err != nil {
			s.logger.Error("cursor persist loop failed", "err", err)
		}
	}()
	return s.consumer.Run(ctx)
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}
