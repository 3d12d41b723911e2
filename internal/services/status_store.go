package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seatrade/rag-backend/internal/config"
	"github.com/seatrade/rag-backend/internal/logger"
	"go.uber.org/zap"
)

// StatusStore 同步运行状态缓存，Redis未启用时为nil，所有方法nil安全
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusStore 创建状态缓存。未启用时返回nil，同步管道照常工作。
func NewStatusStore(cfg config.RedisConfig) *StatusStore {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	return &StatusStore{
		client: client,
		ttl:    time.Hour,
	}
}

// SetRunStatus 记录一次同步运行的状态快照
func (s *StatusStore) SetRunStatus(ctx context.Context, runID string, status map[string]interface{}) {
	if s == nil || s.client == nil {
		return
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return
	}
	key := fmt.Sprintf("rag:sync:run:%s", runID)
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		logger.Warn("failed to cache sync run status", zap.String("run_id", runID), zap.Error(err))
	}
}

// GetRunStatus 读取一次同步运行的状态快照
func (s *StatusStore) GetRunStatus(ctx context.Context, runID string) (map[string]interface{}, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("status store not configured")
	}
	key := fmt.Sprintf("rag:sync:run:%s", runID)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var status map[string]interface{}
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, err
	}
	return status, nil
}
