package container

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// newRedisClient connects using the configured topology and pings it once.
func newRedisClient(ctx context.Context, connInfo ConfigRedis) (redis.UniversalClient, error) {
	var redisClient redis.UniversalClient
	switch connInfo.Mode {
	case "single":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     connInfo.Address[0],
			Username: connInfo.Username,
			Password: connInfo.Password,
			DB:       connInfo.DB,
		})

	case "sentinel":
		redisClient = redis.NewFailoverClient(&redis.FailoverOptions{
			SentinelAddrs: connInfo.Address,
			Username:      connInfo.Username,
			Password:      connInfo.Password,
			DB:            connInfo.DB,
			MasterName:    connInfo.MasterName,
		})

	case "cluster":
		// cluster mode is not support DB selection
		redisClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    connInfo.Address,
			Username: connInfo.Username,
			Password: connInfo.Password,
		})

	default:
		return nil, fmt.Errorf("unknown redis mode: %s", connInfo.Mode)
	}

	err := redisClient.Ping(ctx).Err()
	if err != nil {
		if _err := redisClient.Close(); _err != nil {
			err = fmt.Errorf("%w: close error: %s", err, _err)
		}

		return nil, fmt.Errorf("error ping redis: %w", err)
	}

	return redisClient, nil
}
