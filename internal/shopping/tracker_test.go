package shopping

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/smartcart/internal/model"
)

func testTracker(t *testing.T, tr Tracker) {
	ctx := context.Background()
	alice := model.Shopper{UserID: 1, Name: "Alice", StartedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	bob := model.Shopper{UserID: 2, Name: "Bob", StartedAt: time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)}

	cur, err := tr.Current(ctx, 10)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur != nil {
		t.Fatalf("expected no shopper, got %+v", cur)
	}

	ok, err := tr.Start(ctx, 10, alice)
	if err != nil || !ok {
		t.Fatalf("Start = %v, %v", ok, err)
	}
	ok, err = tr.Start(ctx, 10, bob)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if ok {
		t.Fatal("second Start should be rejected while Alice is shopping")
	}

	// Sessions are per household.
	ok, err = tr.Start(ctx, 11, bob)
	if err != nil || !ok {
		t.Fatalf("Start other household = %v, %v", ok, err)
	}

	cur, err = tr.Current(ctx, 10)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur == nil || cur.UserID != 1 || cur.Name != "Alice" || !cur.StartedAt.Equal(alice.StartedAt) {
		t.Fatalf("Current = %+v, want Alice", cur)
	}

	ok, err = tr.Finish(ctx, 10, bob.UserID)
	if err != nil {
		t.Fatalf("Finish by Bob: %v", err)
	}
	if ok {
		t.Fatal("only the active shopper may finish")
	}
	ok, err = tr.Finish(ctx, 10, alice.UserID)
	if err != nil || !ok {
		t.Fatalf("Finish by Alice = %v, %v", ok, err)
	}
	if cur, _ := tr.Current(ctx, 10); cur != nil {
		t.Errorf("session still active: %+v", cur)
	}
	ok, _ = tr.Finish(ctx, 10, alice.UserID)
	if ok {
		t.Error("finishing an idle household should report false")
	}

	if err := tr.Clear(ctx, 11); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cur, _ := tr.Current(ctx, 11); cur != nil {
		t.Errorf("cleared session still active: %+v", cur)
	}
}

func TestMemoryTracker(t *testing.T) {
	testTracker(t, NewMemoryTracker())
}

func TestMemoryTrackerConcurrentStart(t *testing.T) {
	tr := NewMemoryTracker()
	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			ok, _ := tr.Start(context.Background(), 1, model.Shopper{UserID: id})
			if ok {
				started.Add(1)
			}
		}(int64(i))
	}
	wg.Wait()
	if got := started.Load(); got != 1 {
		t.Errorf("%d sessions started, want 1", got)
	}
}

func newRedisTracker(t *testing.T) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRedisTracker(client, "smartcart-test"), mr
}

// touch rewrites the session key through a separate connection, which
// invalidates any WATCH on it.
func touch(t *testing.T, tr *RedisTracker, householdID int64) {
	ctx := context.Background()
	value, err := tr.client.Get(ctx, tr.key(householdID)).Result()
	if err != nil {
		t.Errorf("get: %v", err)
		return
	}
	if err := tr.client.Set(ctx, tr.key(householdID), value, 0).Err(); err != nil {
		t.Errorf("set: %v", err)
	}
}

func TestRedisTracker(t *testing.T) {
	tr, mr := newRedisTracker(t)
	testTracker(t, tr)
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("leftover keys: %v", keys)
	}
}

func TestRedisTrackerKeyLayout(t *testing.T) {
	tr, mr := newRedisTracker(t)
	ok, err := tr.Start(context.Background(), 42, model.Shopper{UserID: 1, Name: "Alice"})
	if err != nil || !ok {
		t.Fatalf("Start = %v, %v", ok, err)
	}
	if !mr.Exists("smartcart-test:shopping:42") {
		t.Errorf("keys = %v", mr.Keys())
	}
}

func TestRedisFinishRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	tr, mr := newRedisTracker(t)
	if ok, err := tr.Start(ctx, 10, model.Shopper{UserID: 1, Name: "Alice"}); err != nil || !ok {
		t.Fatalf("Start = %v, %v", ok, err)
	}

	// Touch the watched key once so the first transaction aborts.
	calls := 0
	tr.beforeCommit = func() {
		calls++
		if calls == 1 {
			touch(t, tr, 10)
		}
	}
	ok, err := tr.Finish(ctx, 10, 1)
	if err != nil || !ok {
		t.Fatalf("Finish = %v, %v", ok, err)
	}
	if calls != 2 {
		t.Errorf("transaction ran %d times, want 2", calls)
	}
	if mr.Exists(tr.key(10)) {
		t.Error("session should be cleared")
	}
}

func TestRedisFinishKeepsNewSession(t *testing.T) {
	ctx := context.Background()
	tr, _ := newRedisTracker(t)
	if ok, err := tr.Start(ctx, 10, model.Shopper{UserID: 1, Name: "Alice"}); err != nil || !ok {
		t.Fatalf("Start = %v, %v", ok, err)
	}

	// Alice's session is replaced by Bob's between the check and the delete.
	tr.beforeCommit = func() {
		tr.beforeCommit = nil
		if err := tr.Clear(ctx, 10); err != nil {
			t.Errorf("Clear: %v", err)
		}
		if ok, err := tr.Start(ctx, 10, model.Shopper{UserID: 2, Name: "Bob"}); err != nil || !ok {
			t.Errorf("Start Bob = %v, %v", ok, err)
		}
	}
	ok, err := tr.Finish(ctx, 10, 1)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if ok {
		t.Error("Alice must not finish Bob's session")
	}
	cur, err := tr.Current(ctx, 10)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur == nil || cur.UserID != 2 {
		t.Errorf("Current = %+v, want Bob", cur)
	}
}

func TestRedisFinishGivesUp(t *testing.T) {
	ctx := context.Background()
	tr, _ := newRedisTracker(t)
	if ok, err := tr.Start(ctx, 10, model.Shopper{UserID: 1, Name: "Alice"}); err != nil || !ok {
		t.Fatalf("Start = %v, %v", ok, err)
	}
	tr.beforeCommit = func() { touch(t, tr, 10) }
	if _, err := tr.Finish(ctx, 10, 1); !errors.Is(err, redis.TxFailedErr) {
		t.Errorf("err = %v, want TxFailedErr", err)
	}
}
