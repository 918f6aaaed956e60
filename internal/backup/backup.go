package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rosevale/habitloop/internal/model"
	"github.com/rosevale/habitloop/internal/store"
)

// s3Client is the subset of the S3 API the manager uses, an interface
// for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3           S3Config
	DBPath       string
	Passphrase   string
	ScheduleHour int
	Keep         int
}

// Manager takes encrypted SQLite snapshots and uploads them to
// S3-compatible storage, daily at the configured UTC hour plus on
// demand.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	client  s3Client
	logger  *slog.Logger

	lastRun time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		logger:  logger.With("component", "backup"),
	}
	if cfg.Keep <= 0 {
		m.cfg.Keep = 30
	}
	if m.Enabled() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether backups are configured.
func (m *Manager) Enabled() bool {
	return m.cfg.S3.Bucket != "" && m.cfg.S3.AccessKey != "" &&
		m.cfg.S3.SecretKey != "" && m.cfg.Passphrase != ""
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop waits for the schedule loop to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.ScheduleHour {
		return
	}

	m.mu.Lock()
	ranToday := m.lastRun.Year() == now.Year() && m.lastRun.YearDay() == now.YearDay()
	m.mu.Unlock()
	if ranToday {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
}

// RunNow snapshots the database, encrypts it, uploads it and prunes old
// backups. Returns the new backup record.
func (m *Manager) RunNow(ctx context.Context) (*model.BackupRecord, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("backup not configured")
	}

	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("habitloop-snapshot-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)

	// VACUUM INTO writes a consistent copy without blocking writers.
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	encrypted, err := EncryptSnapshot(plaintext, m.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("backups/habitloop-%s.db.enc", time.Now().UTC().Format("2006-01-02T150405Z"))
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(encrypted),
	})
	if err != nil {
		return nil, fmt.Errorf("upload backup: %w", err)
	}

	record, err := m.backups.Record(key, int64(len(encrypted)))
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}

	m.mu.Lock()
	m.lastRun = time.Now().UTC()
	m.mu.Unlock()

	if err := m.prune(ctx); err != nil {
		m.logger.Warn("prune old backups", "error", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(encrypted))
	return record, nil
}

func (m *Manager) prune(ctx context.Context) error {
	old, err := m.backups.Oldest(m.cfg.Keep)
	if err != nil {
		return err
	}
	for _, rec := range old {
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(rec.ObjectKey),
		})
		if err != nil {
			return fmt.Errorf("delete object %s: %w", rec.ObjectKey, err)
		}
		if err := m.backups.Delete(rec.ID); err != nil {
			return err
		}
	}
	return nil
}
