package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	statusCachePrefix  = "exam:status:"
	statusCacheRetries = 3
)

// cachedStatus 缓存值附带会话版本号，旧版本不能覆盖新版本
type cachedStatus struct {
	Revision int                     `json:"revision"`
	View     model.SessionStatusView `json:"view"`
}

// StatusCache 会话状态投影的 Redis 缓存，客户端为 nil 时所有操作为空操作。
// 缓存读写失败只记录日志，不影响请求
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func (c *StatusCache) Get(ctx context.Context, id string) (*model.SessionStatusView, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	cached, err := readCachedStatus(ctx, c.client, statusCachePrefix+id)
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("读取状态缓存失败", zap.String("session_id", id), zap.Error(err))
		}
		return nil, false
	}
	return &cached.View, true
}

// Set 在 WATCH 事务中写入，缓存中已有更新版本时放弃写入
func (c *StatusCache) Set(ctx context.Context, view model.SessionStatusView, revision int) {
	if c == nil || c.client == nil {
		return
	}

	key := statusCachePrefix + view.ID
	data, err := json.Marshal(cachedStatus{Revision: revision, View: view})
	if err != nil {
		return
	}

	write := func(tx *redis.Tx) error {
		current, err := readCachedStatus(ctx, tx, key)
		if err != nil && err != redis.Nil {
			return err
		}
		if !shouldReplaceStatus(current, revision) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < statusCacheRetries; i++ {
		err = c.client.Watch(ctx, write, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		logger.Log.Warn("写入状态缓存失败", zap.String("session_id", view.ID), zap.Error(err))
		c.Invalidate(ctx, view.ID)
	}
}

func (c *StatusCache) Invalidate(ctx context.Context, id string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, statusCachePrefix+id).Err(); err != nil {
		logger.Log.Warn("清除状态缓存失败", zap.String("session_id", id), zap.Error(err))
	}
}

type statusReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readCachedStatus(ctx context.Context, rdb statusReader, key string) (*cachedStatus, error) {
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var cached cachedStatus
	if err := json.Unmarshal(data, &cached); err != nil {
		// 格式不对的旧值视为不存在
		return nil, redis.Nil
	}
	return &cached, nil
}

func shouldReplaceStatus(current *cachedStatus, revision int) bool {
	return current == nil || current.Revision <= revision
}
