package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"nammakumta/directory/internal/client"
	"nammakumta/directory/internal/config"
	"nammakumta/directory/internal/endpoint"
	"nammakumta/directory/internal/queue"
	"nammakumta/directory/internal/repository"
	"nammakumta/directory/internal/service"
	"nammakumta/directory/internal/state"
	"nammakumta/directory/internal/web"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Client     client.DirectoryClient
	Repository repository.DirectoryRepository
	Queue      queue.Queue
	SyncState  state.SyncState
	Navigation state.NavigationStore

	Service *service.Service
	Server  *web.Server

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	endpoints := endpoint.NewSupplier(ctx, cfg.Backend.BaseURL, cfg.Backend.Mirrors)

	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	container.db = db

	if err := repository.EnsureSchema(ctx, db); err != nil {
		container.Close()
		return nil, err
	}
	log.Info("✅ Connected to Postgres successfully")

	directoryRepo := repository.NewDirectoryRepository(db)
	container.Repository = directoryRepo

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	container.redis = rdb

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Queue = redisQueue

	container.SyncState = state.NewRedisSyncState(rdb)
	container.Navigation = state.NewRedisNavigationStore(rdb, cfg.Navigation.TTL())

	// the client needs the queue to park failed pages
	directoryClient := client.NewDirectoryClient(cfg.Backend, endpoints, redisQueue)
	container.Client = directoryClient

	container.Service = service.NewService(
		directoryRepo,
		directoryClient,
		redisQueue,
		container.SyncState,
		cfg.Sync.SaveInterval,
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MinIdleTime,
		cfg.Sync.MaxRetries,
	)

	server, err := web.NewServer(
		cfg.Server,
		cfg.Navigation,
		directoryRepo,
		directoryClient,
		container.Service,
		container.Navigation,
	)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize web server: %w", err)
	}
	container.Server = server

	return container, nil
}

// Run serves the site while the mirror is kept in sync in the background.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Server.Run(ctx)
	})

	g.Go(func() error {
		return c.Service.RunWorkers(ctx, c.Config.Sync.Workers)
	})

	g.Go(func() error {
		return c.Service.RunScheduler(ctx, time.Duration(c.Config.Sync.Interval)*time.Second)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			log.WithError(err).Warn("⚠️ Failed to close backend client")
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.WithError(err).Warn("⚠️ Failed to close Redis client")
		}
	}
	if c.db != nil {
		c.db.Close()
	}

	log.Info("Container shut down successfully")
	return nil
}
