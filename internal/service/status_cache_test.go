package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ielts_exam_backend/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCache_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	view := model.SessionStatusView{ID: "s-1", Status: model.StatusPhase1Selected}

	for name, cache := range map[string]*StatusCache{
		"nil client":   NewStatusCache(nil, time.Minute),
		"nil receiver": nil,
	} {
		t.Run(name, func(t *testing.T) {
			cache.Set(ctx, view, 1)
			got, ok := cache.Get(ctx, "s-1")
			assert.False(t, ok)
			assert.Nil(t, got)
			assert.NotPanics(t, func() { cache.Invalidate(ctx, "s-1") })
		})
	}
}

func TestShouldReplaceStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  *cachedStatus
		revision int
		want     bool
	}{
		{name: "empty cache", current: nil, revision: 0, want: true},
		{name: "newer revision", current: &cachedStatus{Revision: 2}, revision: 3, want: true},
		{name: "same revision", current: &cachedStatus{Revision: 3}, revision: 3, want: true},
		{name: "stale read after commit", current: &cachedStatus{Revision: 4}, revision: 3, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldReplaceStatus(tt.current, tt.revision))
		})
	}
}

type stubStatusReader struct {
	val string
	err error
}

func (r stubStatusReader) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringResult(r.val, r.err)
}

func TestReadCachedStatus(t *testing.T) {
	ctx := context.Background()

	data, err := json.Marshal(cachedStatus{
		Revision: 5,
		View:     model.SessionStatusView{ID: "s-9", Status: model.StatusPhase2Generated, Phase2Available: true},
	})
	require.NoError(t, err)

	got, err := readCachedStatus(ctx, stubStatusReader{val: string(data)}, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Revision)
	assert.Equal(t, model.StatusPhase2Generated, got.View.Status)
	assert.True(t, got.View.Phase2Available)

	_, err = readCachedStatus(ctx, stubStatusReader{val: "not json"}, "k")
	assert.Equal(t, redis.Nil, err)

	_, err = readCachedStatus(ctx, stubStatusReader{err: redis.Nil}, "k")
	assert.Equal(t, redis.Nil, err)
}
