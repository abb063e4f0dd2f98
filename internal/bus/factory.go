package bus

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/common/config"
)

// Type represents the type of bus backing
type Type string

const (
	// TypeMemory represents the in-process channel bus
	TypeMemory Type = "memory"
	// TypeRedis represents the Redis pub/sub bus
	TypeRedis Type = "redis"
)

// NewBus creates a new broadcast bus based on configuration
func NewBus(ctx context.Context, logger *zap.Logger, cfg *config.BusConfig) (Bus, error) {
	logger.Info("Initializing message bus", zap.String("type", cfg.Type))
	switch Type(cfg.Type) {
	case TypeMemory:
		return NewMemoryBus(logger), nil
	case TypeRedis:
		return NewRedisBus(ctx, logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported bus type: %s", cfg.Type)
	}
}
