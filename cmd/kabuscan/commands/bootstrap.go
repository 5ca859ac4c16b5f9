package commands

import (
	"context"
	"fmt"

	"github.com/kaizumaki/kabuscan/internal/alert"
	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/internal/provider/kabuweb"
	"github.com/kaizumaki/kabuscan/internal/selection"
	"github.com/kaizumaki/kabuscan/internal/strategy"
	"github.com/kaizumaki/kabuscan/pkg/config"
	"github.com/kaizumaki/kabuscan/pkg/database"
	"github.com/kaizumaki/kabuscan/pkg/httputil"
	"github.com/kaizumaki/kabuscan/pkg/logger"
	"github.com/kaizumaki/kabuscan/pkg/redis"
)

// deps holds the shared wiring built once per command invocation.
type deps struct {
	cfg    *config.Config
	logger *logger.Logger

	redisClient *redis.Client
	cache       *redis.Cache
	db          *database.DB // nil when persistence is disabled

	provider contracts.DataProvider
	evalA    contracts.Evaluator
	evalB    contracts.Evaluator

	engine   *alert.Engine
	scanRepo *selection.Repository // nil when persistence is disabled
}

// setup builds the dependency graph every command shares.
func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "kabuscan")

	d := &deps{
		cfg:         cfg,
		logger:      log,
		redisClient: redisClient,
		cache:       cache,
	}

	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		d.db = db
		d.scanRepo = selection.NewRepository(db.Pool)
		log.Info("Connected to database")
	} else {
		log.Warn("DATABASE_URL not set, result persistence disabled")
	}

	if cfg.Provider.BaseURL == "" {
		return nil, fmt.Errorf("PROVIDER_BASE_URL is required")
	}

	providerClient := httputil.NewWithTimeout(log, cfg.Provider.FetchTimeout)
	if redisClient.Enabled() {
		providerClient = providerClient.WithRateLimiter(
			redis.NewRateLimiter(redisClient, "kabuscan"), redis.KabuwebRateLimit)
	}
	d.provider = kabuweb.New(cfg.Provider, providerClient, cache, log)

	d.evalA = strategy.NewStopHigh(strategy.StopHighConfig{
		VolumeSurgeThreshold: cfg.Screen.VolumeSurgeThreshold,
	})
	d.evalB = strategy.NewTurnaround()

	var store contracts.AlertStore = alert.NewMemStore()
	if d.db != nil {
		store = alert.NewRepository(d.db.Pool)
	}

	var notifier contracts.Notifier = alert.NewLogNotifier(log)
	if cfg.Notify.WebhookURL != "" {
		notifier = alert.NewWebhookNotifier(
			httputil.NewWithTimeout(log, cfg.Notify.Timeout), cfg.Notify.WebhookURL)
	}

	engine, err := alert.NewEngine(ctx, store, notifier, alert.NewRedisBaseline(cache), log)
	if err != nil {
		return nil, fmt.Errorf("init alert engine: %w", err)
	}
	d.engine = engine

	return d, nil
}

// close releases held connections.
func (d *deps) close() {
	if d.engine != nil {
		d.engine.Drain()
	}
	if d.db != nil {
		d.db.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
}
