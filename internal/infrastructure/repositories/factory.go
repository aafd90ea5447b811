package repositories

import (
	"context"
	"fmt"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
	"eclairia/internal/infrastructure/repositories/memory"
	redisrepo "eclairia/internal/infrastructure/repositories/redis"
	"eclairia/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RepositoryFactory owns the storage backend chosen at startup.
type RepositoryFactory struct {
	backend string
	client  *redis.Client
}

// NewRepositoryFactory picks Redis when it is enabled and reachable. An
// unreachable Redis is logged and the factory falls back to memory, so a
// single instance still serves its catalog.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	f := &RepositoryFactory{backend: BackendMemory}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(redisrepo.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("redis unavailable, using memory repositories", "error", err)
		} else {
			f.backend = BackendRedis
			f.client = client
		}
	}

	logger.Infow("station repository selected", "backend", f.backend)
	return f
}

// Backend names the storage in use.
func (f *RepositoryFactory) Backend() string {
	return f.backend
}

// RedisClient returns the shared client, or nil on the memory backend.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.client
}

func (f *RepositoryFactory) CreateStationRepository() ports.StationRepository {
	if f.client != nil {
		return redisrepo.NewRedisStationRepository(f.client)
	}
	return memory.NewMemoryStationRepository()
}

// Seed validates the catalog and stores it in repo.
func Seed(ctx context.Context, repo ports.StationRepository, stations []domain.Station) error {
	for _, s := range stations {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if err := repo.ReplaceAll(ctx, stations); err != nil {
		return fmt.Errorf("failed to seed stations: %w", err)
	}
	return nil
}

func (f *RepositoryFactory) Close() error {
	return redisrepo.CloseRedisClient(f.client)
}

// HealthCheck pings Redis; the memory backend is always healthy.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.client == nil {
		return nil
	}
	return f.client.Ping(ctx).Err()
}
