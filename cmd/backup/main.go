package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/dctmfoo/AIResearchScribe/storage"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

type BackupConfig struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	BackupBucket    string `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	BackupEndpoint  string `envconfig:"BACKUP_S3_ENDPOINT"`
	BackupAccessKey string `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	BackupSecretKey string `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	BackupRegion    string `envconfig:"BACKUP_S3_REGION" default:"us-east-1"`

	// Rotation only ever looks below this prefix, so the bucket may be shared with media.
	BackupPrefix string        `envconfig:"BACKUP_PREFIX" default:"backups/"`
	KeepBackups  int           `envconfig:"KEEP_BACKUPS" default:"4"`
	Timeout      time.Duration `envconfig:"BACKUP_TIMEOUT" default:"30m"`
}

// backupStore is the subset of storage.ObjectStore the backup job needs.
type backupStore interface {
	Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	_ = godotenv.Load()
	var cfg BackupConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	if cfg.KeepBackups < 1 {
		logging.Fatal("KEEP_BACKUPS must be at least 1", zap.Int("keep", cfg.KeepBackups))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	logging.Info("Starting backup", zap.String("database", cfg.DBName))
	dump, err := createDump(ctx, cfg)
	if err != nil {
		logging.Fatal("Failed to create database dump", zap.Error(err))
	}

	store, err := storage.NewObjectStore(ctx, storage.S3Options{
		Endpoint: cfg.BackupEndpoint,
		Region:   cfg.BackupRegion,
		Key:      cfg.BackupAccessKey,
		Secret:   cfg.BackupSecretKey,
		Bucket:   cfg.BackupBucket,
	})
	if err != nil {
		logging.Fatal("Failed to create S3 client", zap.Error(err))
	}

	key := backupKey(cfg.BackupPrefix, time.Now())
	if err := store.Put(ctx, key, dump, "application/gzip", ""); err != nil {
		logging.Fatal("Failed to upload backup", zap.Error(err))
	}
	logging.Info("Backup uploaded", zap.String("bucket", cfg.BackupBucket), zap.String("key", key), zap.Int("bytes", len(dump)))

	deleted, err := rotateBackups(ctx, store, cfg.BackupPrefix, cfg.KeepBackups, logging)
	if err != nil {
		logging.Fatal("Failed to rotate old backups", zap.Error(err))
	}
	logging.Info("Backup finished", zap.Int("rotated", deleted))
}

func backupKey(prefix string, now time.Time) string {
	return fmt.Sprintf("%sbackup-%s.sql.gz", prefix, now.UTC().Format("2006-01-02T15-04-05Z"))
}

func createDump(ctx context.Context, cfg BackupConfig) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", fmt.Sprint(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // password comes from PGPASSWORD
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := compress(&buf, stdout); err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("pg_dump: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return buf.Bytes(), nil
}

func compress(dst io.Writer, src io.Reader) error {
	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		return err
	}
	return gz.Close()
}

// rotateBackups keeps the newest keep backups under prefix and deletes the rest.
// A failed delete is logged and retried on the next run.
func rotateBackups(ctx context.Context, store backupStore, prefix string, keep int, logging *zap.Logger) (int, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) <= keep {
		logging.Info("No rotation needed", zap.Int("backups", len(objects)), zap.Int("keep", keep))
		return 0, nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return lastModified(objects[i]).After(lastModified(objects[j]))
	})

	deleted := 0
	for _, obj := range objects[keep:] {
		if obj.Key == nil {
			continue
		}
		logging.Info("Deleting old backup", zap.String("key", *obj.Key))
		if err := store.Delete(ctx, *obj.Key); err != nil {
			logging.Warn("Failed to delete old backup", zap.String("key", *obj.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

func lastModified(obj types.Object) time.Time {
	if obj.LastModified == nil {
		return time.Time{}
	}
	return *obj.LastModified
}
