// Command worker runs the background lifecycle jobs of Table for Two: expiring
// stale match requests and persisting daily restaurant analytics snapshots.
// It also exposes the Prometheus metrics of every component on METRICS_ADDR.
//
// Usage:
//
//	worker          run the jobs on their intervals until SIGINT/SIGTERM
//	worker -once    run every enabled job once and exit
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/cache"
	"github.com/tbourn/table-for-two/internal/config"
	"github.com/tbourn/table-for-two/internal/jobs"
	"github.com/tbourn/table-for-two/internal/observability"
	"github.com/tbourn/table-for-two/internal/repo"
	"github.com/tbourn/table-for-two/internal/restaurant"
	"github.com/tbourn/table-for-two/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	once := flag.Bool("once", false, "run every enabled job once and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	log := sysutil.NewLogger(cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *once); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
	log.Info().Msg("worker exited")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger, once bool) error {
	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	dbOpts := []repo.Option{}
	if cfg.OTEL.Enabled {
		dbOpts = append(dbOpts, repo.WithTracing())
	}
	db, err := repo.OpenSQLite(cfg.DBPath, dbOpts...)
	if err != nil {
		return err
	}
	defer closeDB(db, log)
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	store, closeStore := openCache(ctx, cfg, log)
	defer closeStore()

	resolver := &restaurant.Resolver{
		Catalog: restaurant.DBCatalog{DB: db},
		Cache:   store,
		Seed:    restaurant.DefaultSeed(),
		Timeout: cfg.Provider.Timeout,
		TTL:     cfg.CacheTTL,
		Log:     log.With().Str("component", "resolver").Logger(),
	}
	if cfg.Provider.BaseURL != "" {
		resolver.Provider = restaurant.NewHTTPProvider(
			cfg.Provider.BaseURL, cfg.Provider.APIKey,
			cfg.Provider.Timeout, cfg.Provider.RPS, cfg.Provider.Burst,
		)
	}

	svc := newServices(db, resolver, log, cfg.Jobs.MatchExpireAfter)

	sched := &jobs.Scheduler{Log: log.With().Str("component", "jobs").Logger()}
	if cfg.Jobs.Has(config.JobMatchExpiry) {
		sched.Jobs = append(sched.Jobs, jobs.ExpiryJob(svc.Matches, cfg.Jobs.ExpiryInterval))
	}
	if cfg.Jobs.Has(config.JobAnalyticsSnapshot) {
		sched.Jobs = append(sched.Jobs, jobs.SnapshotJob(svc.Analytics, cfg.Jobs.SnapshotInterval, nil))
	}
	if len(sched.Jobs) == 0 {
		return errors.New("no jobs enabled")
	}

	if once {
		return sched.RunOnce(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return observability.ServeMetrics(gctx, cfg.MetricsAddr, log) })
	g.Go(func() error { return sched.Run(gctx) })
	return g.Wait()
}

// openCache returns the Redis-backed store when REDIS_ADDR is set and
// reachable, and the in-process store otherwise.
func openCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (cache.Store, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryStore(), func() {}
	}
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-process cache")
		return cache.NewMemoryStore(), func() {}
	}
	return cache.NewRedisStore(client, "tft:"), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}
}

func closeDB(db *gorm.DB, log zerolog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("db close")
	}
}
