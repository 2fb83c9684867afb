package affinity

import (
	"fmt"

	"github.com/caseline/caseline/internal/common/config"

	"go.uber.org/zap"
)

// Type represents the type of affinity store
type Type string

const (
	// TypeMemory represents the in-memory affinity store
	TypeMemory Type = "memory"
	// TypeRedis represents the Redis-based affinity store
	TypeRedis Type = "redis"
)

// NewStore creates a new affinity store based on configuration
func NewStore(logger *zap.Logger, cfg *config.AffinityConfig) (Store, error) {
	logger.Info("initializing affinity store", zap.String("type", cfg.Type))
	switch Type(cfg.Type) {
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeRedis:
		return NewRedisStore(logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported affinity store type: %s", cfg.Type)
	}
}
