package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voyagen/worldtv/internal/cache"
	"github.com/voyagen/worldtv/internal/catalog"
	"github.com/voyagen/worldtv/internal/config"
	"github.com/voyagen/worldtv/internal/fetcher"
	"github.com/voyagen/worldtv/internal/player"
	"github.com/voyagen/worldtv/internal/server"
	"github.com/voyagen/worldtv/internal/service"
	"github.com/voyagen/worldtv/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var appStore store.Store
	if cfg.DatabaseURL != "" {
		if err := store.RunMigrations(cfg.DatabaseURL, "file://"+migrationsDir()); err != nil {
			return err
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		appStore = pg
		logger.Info("Postgres connected")
	} else {
		appStore = store.NewMemory()
		logger.Warn("DATABASE_URL not set, user lists are kept in memory")
	}

	var rds *cache.Redis
	var queue service.WatchQueue = service.NewMemoryQueue(0)
	if cfg.RedisURL != "" {
		if rds, err = cache.New(cfg.RedisURL); err != nil {
			return err
		}
		defer rds.Close()
		if err := rds.Ping(ctx); err != nil {
			return err
		}
		appStore = store.NewCachedStore(appStore, rds, logger)
		queue = service.NewRedisQueue(rds)
		logger.Info("Redis connected (user list caching enabled)")
	} else {
		logger.Info("Redis disabled (REDIS_URL not set)")
	}

	cat := buildCatalog(cfg, logger)
	go cat.Refresh(ctx)
	if cfg.RefreshInterval > 0 {
		go catalog.NewRefresher(cat, cfg.RefreshInterval, logger.WithField("component", "refresher")).Start(ctx)
	}

	recorder := service.NewWatchRecorder(queue, appStore, logger)
	go recorder.Run(ctx)

	engines := &player.HLSFactory{UserAgent: cfg.UserAgent, Logger: logger.WithField("component", "hls")}
	players := player.NewRegistry(func(userID string) *player.Manager {
		return player.NewManager(player.Options{
			Engines:  engines,
			Sink:     &player.VirtualSink{},
			Reporter: recorder.Reporter(userID),
			Logger:   logger.WithField("user", userID),
		})
	})
	defer players.CloseAll()

	srv := server.New(server.Deps{
		Catalog: cat,
		Library: service.NewLibrary(appStore, cat, logger),
		Players: players,
		Redis:   rds,
		Logger:  logger,
	})
	return srv.ListenAndServe(ctx, ":"+cfg.ServerPort)
}

func buildCatalog(cfg *config.Config, logger logrus.FieldLogger) *catalog.Catalog {
	f := fetcher.New(cfg.UserAgent, cfg.Timeout, fetcher.ParseOptions{AllowedSchemes: cfg.AllowedSchemes()},
		logger.WithField("component", "fetcher"))
	agg := catalog.NewAggregator(f, cfg.FetchConcurrency, logger.WithField("component", "aggregator"))
	sources := cfg.Sources
	if len(sources) == 0 {
		sources = catalog.DefaultSources()
	}
	return catalog.New(agg, sources, cfg.PinnedCountries, logger.WithField("component", "catalog"))
}

// migrationsDir finds migrations/ in the working directory or next to the binary.
func migrationsDir() string {
	abs, err := filepath.Abs("migrations")
	if err != nil {
		abs = "migrations"
	}
	if _, err := os.Stat(abs); err != nil {
		if exe, e := os.Executable(); e == nil {
			abs = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	return abs
}
