package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/data-agent/backend/pkg/logger"
)

// Client is the optional second-tier result cache. The in-process bounded
// cache answers repeats within one instance; this one shares results across
// instances, keyed by dataset fingerprint plus normalized query hash.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis result cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func resultKey(datasetFingerprint, queryHash string) string {
	return fmt.Sprintf("result:%s:%s", datasetFingerprint, queryHash)
}

func (c *Client) SetResult(ctx context.Context, datasetFingerprint, queryHash string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, resultKey(datasetFingerprint, queryHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set result cache: %w", err)
	}

	logger.Debug("Result cached in redis",
		zap.String("dataset", datasetFingerprint),
		zap.String("query_hash", queryHash),
	)
	return nil
}

func (c *Client) GetResult(ctx context.Context, datasetFingerprint, queryHash string, result any) (bool, error) {
	data, err := c.client.Get(ctx, resultKey(datasetFingerprint, queryHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get result cache: %w", err)
	}

	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	logger.Debug("Redis result cache hit",
		zap.String("dataset", datasetFingerprint),
		zap.String("query_hash", queryHash),
	)
	return true, nil
}

// InvalidateDataset removes every cached result for one dataset, used when
// a dataset is re-uploaded under the same name.
func (c *Client) InvalidateDataset(ctx context.Context, datasetFingerprint string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("result:%s:*", datasetFingerprint), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}
	return nil
}
