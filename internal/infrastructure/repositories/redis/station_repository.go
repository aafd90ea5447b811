package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
	"eclairia/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "eclairia:station:"
	stationsSuffix = "records"
	orderSuffix    = "order"
)

// RedisStationRepository stores station records as JSON in one hash and keeps
// catalog order in a list next to it.
type RedisStationRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisStationRepository(client *redis.Client) ports.StationRepository {
	return &RedisStationRepository{
		client: client,
		prefix: defaultPrefix,
	}
}

func (r *RedisStationRepository) recordsKey() string {
	return r.prefix + stationsSuffix
}

func (r *RedisStationRepository) orderKey() string {
	return r.prefix + orderSuffix
}

func (r *RedisStationRepository) List(ctx context.Context) ([]domain.Station, error) {
	ctx, span := tracing.TraceRepositoryOperation(ctx, "list", "redis")
	defer span.End()

	ids, err := r.client.LRange(ctx, r.orderKey(), 0, -1).Result()
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to read station order from Redis: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Station{}, nil
	}

	values, err := r.client.HMGet(ctx, r.recordsKey(), ids...).Result()
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to read stations from Redis: %w", err)
	}

	stations := make([]domain.Station, 0, len(values))
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			// order list and hash drifted apart; skip the missing record
			continue
		}
		var station domain.Station
		if err := json.Unmarshal([]byte(data), &station); err != nil {
			return nil, fmt.Errorf("failed to unmarshal station %s: %w", ids[i], err)
		}
		stations = append(stations, station)
	}
	return stations, nil
}

func (r *RedisStationRepository) Get(ctx context.Context, id domain.StationID) (*domain.Station, error) {
	ctx, span := tracing.TraceRepositoryOperation(ctx, "get", "redis")
	defer span.End()

	data, err := r.client.HGet(ctx, r.recordsKey(), string(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrStationNotFound
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to get station from Redis: %w", err)
	}

	var station domain.Station
	if err := json.Unmarshal([]byte(data), &station); err != nil {
		return nil, fmt.Errorf("failed to unmarshal station: %w", err)
	}
	return &station, nil
}

// ReplaceAll swaps the whole catalog in one MULTI/EXEC transaction.
func (r *RedisStationRepository) ReplaceAll(ctx context.Context, stations []domain.Station) error {
	ctx, span := tracing.TraceRepositoryOperation(ctx, "replace_all", "redis")
	defer span.End()

	records := make(map[string]interface{}, len(stations))
	order := make([]interface{}, 0, len(stations))
	for _, s := range stations {
		if _, exists := records[string(s.ID)]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateStation, s.ID)
		}
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal station: %w", err)
		}
		records[string(s.ID)] = data
		order = append(order, string(s.ID))
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.recordsKey(), r.orderKey())
		if len(stations) > 0 {
			pipe.HSet(ctx, r.recordsKey(), records)
			pipe.RPush(ctx, r.orderKey(), order...)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to store stations in Redis: %w", err)
	}
	return nil
}
