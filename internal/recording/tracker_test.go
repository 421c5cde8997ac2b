package recording

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryTrackerRoundTrip(t *testing.T) {
	tracker := NewMemoryTracker(time.Minute)
	ctx := context.Background()

	meta := UploadMeta{ID: "u1", UserID: 7, OriginalName: "take.webm", PartPath: "/tmp/u1.part"}
	if err := tracker.Put(ctx, meta); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := tracker.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 7 || got.OriginalName != "take.webm" {
		t.Fatalf("unexpected meta: %#v", got)
	}

	if err := tracker.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := tracker.Get(ctx, "u1"); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMemoryTrackerExpiry(t *testing.T) {
	now := time.Now()
	tracker := newMemoryTracker(10*time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if err := tracker.Put(ctx, UploadMeta{ID: "u1"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	now = now.Add(5 * time.Minute)
	if _, err := tracker.Get(ctx, "u1"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	now = now.Add(6 * time.Minute)
	if _, err := tracker.Get(ctx, "u1"); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryTrackerPutRefreshesTTL(t *testing.T) {
	now := time.Now()
	tracker := newMemoryTracker(10*time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if err := tracker.Put(ctx, UploadMeta{ID: "u1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(8 * time.Minute)
	if err := tracker.Put(ctx, UploadMeta{ID: "u1", Chunks: 1}); err != nil {
		t.Fatalf("refresh put: %v", err)
	}

	// 8 + 4 minutes is past the original deadline but inside the refreshed one.
	now = now.Add(4 * time.Minute)
	got, err := tracker.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after refresh: %v", err)
	}
	if got.Chunks != 1 {
		t.Fatalf("refresh lost data: %#v", got)
	}
}

func TestMemoryTrackerSweep(t *testing.T) {
	now := time.Now()
	tracker := newMemoryTracker(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if err := tracker.Put(ctx, UploadMeta{ID: "old"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := tracker.Put(ctx, UploadMeta{ID: "fresh"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	tracker.sweep()

	tracker.mu.Lock()
	_, oldExists := tracker.items["old"]
	_, freshExists := tracker.items["fresh"]
	tracker.mu.Unlock()
	if oldExists {
		t.Fatalf("sweep kept expired entry")
	}
	if !freshExists {
		t.Fatalf("sweep dropped live entry")
	}
}
