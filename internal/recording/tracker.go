package recording

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/debashish17/Riverside/internal/redis"
)

// ErrUploadNotFound means the upload id is unknown or its claim expired.
var ErrUploadNotFound = errors.New("upload not found or expired")

// UploadMeta tracks one in-flight chunked upload. It lives in an expiring
// keyed store, never an unbounded in-process map: an abandoned upload simply
// ages out.
type UploadMeta struct {
	ID           string `json:"id"`
	UserID       int64  `json:"userId"`
	SessionID    *int64 `json:"sessionId,omitempty"`
	SessionName  string `json:"sessionName,omitempty"`
	OriginalName string `json:"originalName"`
	PartPath     string `json:"partPath"`
	Chunks       int    `json:"chunks"`
}

// UploadTracker is the expiring keyed store for in-flight uploads. Every
// write refreshes the TTL.
type UploadTracker interface {
	Put(ctx context.Context, meta UploadMeta) error
	Get(ctx context.Context, id string) (UploadMeta, error)
	Delete(ctx context.Context, id string) error
}

const uploadKeyPrefix = "recording:upload:"

// redisTracker keeps upload claims in redis TTL keys so uploads survive a
// process restart and expire server-side.
type redisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, ttl time.Duration) UploadTracker {
	return &redisTracker{client: client, ttl: ttl}
}

func (t *redisTracker) Put(ctx context.Context, meta UploadMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal upload meta: %w", err)
	}
	return t.client.Set(ctx, uploadKeyPrefix+meta.ID, data, t.ttl)
}

func (t *redisTracker) Get(ctx context.Context, id string) (UploadMeta, error) {
	raw, err := t.client.Get(ctx, uploadKeyPrefix+id)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return UploadMeta{}, ErrUploadNotFound
		}
		return UploadMeta{}, fmt.Errorf("read upload meta: %w", err)
	}
	var meta UploadMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return UploadMeta{}, fmt.Errorf("unmarshal upload meta: %w", err)
	}
	return meta, nil
}

func (t *redisTracker) Delete(ctx context.Context, id string) error {
	return t.client.Del(ctx, uploadKeyPrefix+id)
}

// MemoryTracker is the single-process fallback with the same expiry
// semantics, swept by a janitor.
type MemoryTracker struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	meta      UploadMeta
	expiresAt time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return newMemoryTracker(ttl, time.Now)
}

func newMemoryTracker(ttl time.Duration, now func() time.Time) *MemoryTracker {
	return &MemoryTracker{
		items: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   now,
	}
}

func (t *MemoryTracker) Put(_ context.Context, meta UploadMeta) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[meta.ID] = memoryEntry{meta: meta, expiresAt: t.now().Add(t.ttl)}
	return nil
}

func (t *MemoryTracker) Get(_ context.Context, id string) (UploadMeta, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.items[id]
	if !ok || t.now().After(entry.expiresAt) {
		delete(t.items, id)
		return UploadMeta{}, ErrUploadNotFound
	}
	return entry.meta, nil
}

func (t *MemoryTracker) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, id)
	return nil
}

// StartJanitor sweeps expired claims so abandoned uploads don't accumulate.
func (t *MemoryTracker) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

func (t *MemoryTracker) sweep() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, entry := range t.items {
		if now.After(entry.expiresAt) {
			delete(t.items, id)
		}
	}
}
