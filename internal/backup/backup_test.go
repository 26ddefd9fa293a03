package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/smartcart/internal/store/sqlite"
	"github.com/dukerupert/smartcart/internal/store/storetest"
)

type mockObject struct {
	data     []byte
	modified time.Time
}

// mockS3Client keeps objects in memory and stamps them with now.
type mockS3Client struct {
	mu      sync.Mutex
	now     func() time.Time
	objects map[string]mockObject
	putErr  error
}

func newMockS3(now func() time.Time) *mockS3Client {
	return &mockS3Client{now: now, objects: make(map[string]mockObject)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(input.Key)] = mockObject{data: data, modified: m.now()}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[aws.ToString(input.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, aws.ToString(input.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

var testConfig = Config{
	Bucket:     "smartcart",
	AccessKey:  "key",
	SecretKey:  "secret",
	Prefix:     "/backups/",
	Passphrase: "correct horse",
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *mockS3Client, *storetest.Clock) {
	t.Helper()
	clock := storetest.NewClock(time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC))
	client := newMockS3(clock.Now)
	m, err := NewManager(cfg, slog.New(slog.DiscardHandler), withClient(client), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, client, clock
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	partial := testConfig
	partial.Passphrase = ""
	if partial.Enabled() {
		t.Error("config without a passphrase should be disabled")
	}
	if !testConfig.Enabled() {
		t.Error("full config should be enabled")
	}
	if _, err := NewManager(partial, slog.New(slog.DiscardHandler)); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestRunListRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := sqlite.Open(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if _, err := st.CreateUser(ctx, "Alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	m, client, _ := newTestManager(t, testConfig)
	snap, err := m.Run(ctx, st.DB())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap.Key != "backups/smartcart-2026-05-01T030000Z.db.enc" {
		t.Errorf("key = %q", snap.Key)
	}
	stored := client.objects[snap.Key].data
	if int64(len(stored)) != snap.Size {
		t.Errorf("size = %d, stored %d", snap.Size, len(stored))
	}
	if bytes.Contains(stored, []byte("alice@example.com")) {
		t.Error("snapshot is not encrypted")
	}

	snaps, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Key != snap.Key {
		t.Fatalf("list = %+v", snaps)
	}

	target := filepath.Join(dir, "restored.db")
	if err := m.Restore(ctx, snap.Key, target); err != nil {
		t.Fatalf("restore: %v", err)
	}
	restored, err := sqlite.Open(target)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	u, err := restored.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil || u.Name != "Alice" {
		t.Errorf("restored user = %+v", u)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := sqlite.Open(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	m, client, clock := newTestManager(t, testConfig)
	snap, err := m.Run(ctx, st.DB())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	other := testConfig
	other.Passphrase = "battery staple"
	m2, err := NewManager(other, slog.New(slog.DiscardHandler), withClient(client), WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	if err := m2.Restore(ctx, snap.Key, filepath.Join(dir, "restored.db")); err == nil {
		t.Fatal("expected error restoring with the wrong passphrase")
	}
	if err := m.Restore(ctx, "backups/missing.db.enc", filepath.Join(dir, "restored.db")); err == nil {
		t.Fatal("expected error for a missing snapshot")
	}
}

func TestRunUploadError(t *testing.T) {
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "live.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	m, client, _ := newTestManager(t, testConfig)
	client.putErr = errors.New("bucket unavailable")
	if _, err := m.Run(context.Background(), st.DB()); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestListAndPrune(t *testing.T) {
	ctx := context.Background()
	m, client, clock := newTestManager(t, testConfig)

	put := func(key string) {
		client.PutObject(ctx, &s3.PutObjectInput{Key: aws.String(key), Body: strings.NewReader("x")})
	}
	put("backups/smartcart-a.db.enc")
	clock.Advance(24 * time.Hour)
	put("backups/smartcart-b.db.enc")
	put("backups/notes.txt")
	put("elsewhere/smartcart-c.db.enc")
	clock.Advance(24 * time.Hour)
	put("backups/smartcart-d.db.enc")

	snaps, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, s := range snaps {
		keys = append(keys, s.Key)
	}
	want := "backups/smartcart-d.db.enc,backups/smartcart-b.db.enc,backups/smartcart-a.db.enc"
	if strings.Join(keys, ",") != want {
		t.Errorf("keys = %v", keys)
	}

	deleted, err := m.Prune(ctx, 36*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, ok := client.objects["backups/smartcart-a.db.enc"]; ok {
		t.Error("oldest snapshot should be pruned")
	}

	// The newest snapshot survives any retention.
	clock.Advance(365 * 24 * time.Hour)
	if _, err := m.Prune(ctx, time.Hour); err != nil {
		t.Fatalf("prune: %v", err)
	}
	snaps, _ = m.List(ctx)
	if len(snaps) != 1 || snaps[0].Key != "backups/smartcart-d.db.enc" {
		t.Errorf("after prune = %+v", snaps)
	}
}
