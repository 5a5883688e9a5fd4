// Initialization of the Redis client used by the Agora redis event transport.

package db

import (
	"Agora/pkg/log"
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Options needed to reach the redis-server.
type Options struct {
	Addr     string
	Port     string
	Password string
	DB       int
}

// RedisDB represents a redis client connection to be used internally in Agora.
type RedisDB struct {
	client *redis.Client
}

// Client returns the redis client wrapped by RedisDB.
func (db *RedisDB) Client() *redis.Client {
	return db.client
}

// Returns a new Redis DB connection wrapped up by RedisDB struct.
// The connection is lazy, call CheckDbConnection to verify it.
func NewDbConnection(ctx context.Context, logger log.Logger, opts Options) (*RedisDB, error) {
	if opts.Addr == "" || opts.Port == "" {
		return nil, errors.New("improper redis options: address and port are required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr + ":" + opts.Port,
		Password: opts.Password,
		DB:       opts.DB,
	})
	logger.WithCtx(ctx).Info().Msgf("Initialized redis client for %s:%s", opts.Addr, opts.Port)
	return &RedisDB{client: client}, nil
}

// Helper to check connection status of redis client to redis-server.
// Equivalent to a PING request on redis-server, returns PONG on success.
func (db *RedisDB) CheckDbConnection(ctx context.Context, logger log.Logger) error {
	logger.WithCtx(ctx).Info().Msg("Checking DB Connection . . .")
	// Pinging the Redis-server to check connection status
	if cnterr := db.Client().Ping(ctx).Err(); cnterr != nil {
		// Most likely, DB connection failure
		logger.WithCtx(ctx).Error().Err(cnterr).Msg("Redis client couldn't PING the redis-server.")
		return fmt.Errorf("ping redis-server: %w", cnterr)
	}
	// Connection successful
	logger.WithCtx(ctx).Info().Msg("Connection to DB Successful")
	return nil
}

// Helper to clean up test db after finishing Agora tests.
func (db *RedisDB) CleanTestDbData(ctx context.Context, logger log.Logger) {
	if db.Client().Options().DB == 1 {
		dberr := db.Client().FlushDB(ctx).Err()
		if dberr != nil {
			// Error during flushing test db
			logger.Error().Err(dberr).Msg("Error occured during the execution of FlushDB() in db.CleanTestDbData")
		}
	}
}

// Helper to close the RedisDB client, should be called before closing the agent.
func (db *RedisDB) CloseDbConnection(ctx context.Context) error {
	return db.Client().Close()
}
