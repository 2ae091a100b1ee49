package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"compconv/core/generator"
	"compconv/logger"
)

// GenerationCacheKey builds the Redis key for a generation request. The key
// is a hash of the operation and its JSON-encoded request, so identical
// prompts hit the same entry.
func GenerationCacheKey(operation string, req interface{}) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request for cache key: %w", err)
	}
	sum := sha256.Sum256(append([]byte(operation+":"), payload...))
	return "generation:" + operation + ":" + hex.EncodeToString(sum[:16]), nil
}

// GetGenerationResult looks up a cached generation result. A nil result with
// a nil error means a miss; Redis being down or unconfigured also counts as
// a miss, never an error.
func GetGenerationResult(ctx context.Context, key string) (*generator.GenerationResult, error) {
	if RedisClient == nil {
		return nil, nil
	}

	raw, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		logger.Warn("generation cache read failed", logger.String("key", key), logger.ErrorField(err))
		return nil, nil
	}

	var result generator.GenerationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached generation result: %w", err)
	}
	return &result, nil
}

// PutGenerationResult stores a generation result with the given TTL.
// Best-effort: failures are logged, not surfaced.
func PutGenerationResult(ctx context.Context, key string, result *generator.GenerationResult, ttl time.Duration) {
	if RedisClient == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		logger.Warn("failed to marshal generation result for cache", logger.ErrorField(err))
		return
	}
	if err := RedisClient.Set(ctx, key, payload, ttl).Err(); err != nil {
		logger.Warn("generation cache write failed", logger.String("key", key), logger.ErrorField(err))
	}
}
