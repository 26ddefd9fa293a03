// Package backup takes encrypted snapshots of the SQLite database and keeps
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

const snapshotSuffix = ".db.enc"

var ErrNotConfigured = errors.New("backup: object storage is not configured")

// objectStore is the subset of the S3 API used here.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds S3-compatible storage settings and the snapshot passphrase.
type Config struct {
	Endpoint   string        `yaml:"endpoint"`
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	Prefix     string        `yaml:"prefix"`
	Passphrase string        `yaml:"passphrase"`
	Interval   time.Duration `yaml:"interval"`
	Retention  time.Duration `yaml:"retention"`
}

// Enabled reports whether storage credentials and a passphrase are set.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

// Snapshot describes one stored backup.
type Snapshot struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

type Manager struct {
	client     objectStore
	bucket     string
	prefix     string
	passphrase string
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func withClient(c objectStore) Option {
	return func(m *Manager) {
		m.client = c
	}
}

// NewManager returns a Manager for cfg, or ErrNotConfigured.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	m := &Manager{
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		passphrase: cfg.Passphrase,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = newS3Client(cfg)
	}
	return m, nil
}

func newS3Client(cfg Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) key(at time.Time) string {
	name := "smartcart-" + at.UTC().Format("2006-01-02T150405Z") + snapshotSuffix
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Run snapshots db, encrypts the snapshot and uploads it.
func (m *Manager) Run(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	dir, err := os.MkdirTemp("", "smartcart-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// VACUUM INTO writes a consistent copy even while the WAL is active.
	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quote(snapshot)); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	sealed, err := Encrypt(plaintext, m.passphrase, salt)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	snap := &Snapshot{Key: m.key(now), Size: int64(len(sealed)), Modified: now}
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(snap.Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(snap.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	m.logger.Info("backup uploaded", "key", snap.Key, "bytes", snap.Size)
	return snap, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(m.bucket)}
	if m.prefix != "" {
		input.Prefix = aws.String(m.prefix + "/")
	}

	var out []Snapshot
	pages := s3.NewListObjectsV2Paginator(m.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, snapshotSuffix) {
				continue
			}
			out = append(out, Snapshot{
				Key:      key,
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
			})
		}
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		return cmp.Compare(b.Key, a.Key)
	})
	return out, nil
}

// Prune deletes snapshots older than retention. The newest snapshot is
// always kept.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) (int, error) {
	snaps, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-retention)
	deleted := 0
	for i, snap := range snaps {
		if i == 0 || !snap.Modified.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(snap.Key),
		}); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", snap.Key, err)
		}
		deleted++
	}
	if deleted > 0 {
		m.logger.Info("old backups pruned", "count", deleted)
	}
	return deleted, nil
}

// Restore downloads and decrypts the snapshot at key, checks its integrity
// and moves it to dbPath. The server must not be running against dbPath.
func (m *Manager) Restore(ctx context.Context, key, dbPath string) error {
	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	sealed, err := io.ReadAll(result.Body)
	result.Body.Close()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	plaintext, err := Decrypt(sealed, m.passphrase)
	if err != nil {
		return err
	}

	tmp := dbPath + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	m.logger.Info("backup restored", "key", key, "path", dbPath)
	return nil
}

// RunEvery backs up db on each interval tick until ctx is done, pruning
// snapshots older than retention when retention is positive.
func (m *Manager) RunEvery(ctx context.Context, db *sql.DB, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Run(ctx, db); err != nil {
				m.logger.Error("scheduled backup failed", "error", err)
				continue
			}
			if retention > 0 {
				if _, err := m.Prune(ctx, retention); err != nil {
					m.logger.Error("backup prune failed", "error", err)
				}
			}
		}
	}
}

func checkIntegrity(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
