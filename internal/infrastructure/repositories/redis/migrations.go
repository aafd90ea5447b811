package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schemaVersionKey = "eclairia:schema:version"

// step is one change of the Redis key layout. When needed reports false
// only the version is recorded.
type step struct {
	version int
	name    string
	needed  func(ctx context.Context, tx *redis.Tx) (bool, error)
	apply   func(ctx context.Context, p redis.Pipeliner)
}

var steps = []step{
	{
		// the order list is only meaningful next to the records hash
		version: 1,
		name:    "drop orphaned station order",
		needed: func(ctx context.Context, tx *redis.Tx) (bool, error) {
			n, err := tx.Exists(ctx, defaultPrefix+stationsSuffix).Result()
			return n == 0, err
		},
		apply: func(ctx context.Context, p redis.Pipeliner) {
			p.Del(ctx, defaultPrefix+orderSuffix)
		},
	},
}

// LatestSchemaVersion is the layout version Migrate leaves behind.
var LatestSchemaVersion = steps[len(steps)-1].version

// Migrate brings the key layout to the latest version. Each step runs in a
// WATCH transaction on the version key, so instances starting together
// apply it once.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	for _, s := range steps {
		applied, err := applyStep(ctx, client, s)
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", s.version, s.name, err)
		}
		if applied {
			logger.Infow("applied redis migration", "version", s.version, "name", s.name)
		}
	}
	return nil
}

func applyStep(ctx context.Context, client *redis.Client, s step) (bool, error) {
	applied := false
	err := client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, schemaVersionKey).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current >= s.version {
			return nil
		}

		run := true
		if s.needed != nil {
			if run, err = s.needed(ctx, tx); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if run {
				s.apply(ctx, p)
			}
			p.Set(ctx, schemaVersionKey, s.version, 0)
			return nil
		})
		applied = err == nil
		return err
	}, schemaVersionKey)

	if errors.Is(err, redis.TxFailedErr) {
		// another instance moved the version under us
		return false, nil
	}
	return applied, err
}

// SchemaVersion reports the applied layout version, 0 for a fresh database.
func SchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	v, err := client.Get(ctx, schemaVersionKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
