package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"compconv/config"
	"compconv/logger"
)

var (
	minioClient *minio.Client
	bucket      string
)

// InitMinio initializes the MinIO client and makes sure the bucket exists.
// With no endpoint configured, sample storage stays disabled and GetClient
// returns nil.
func InitMinio(cfg *config.Config) error {
	if cfg.MinioEndpoint == "" {
		logger.Info("MinIO endpoint not configured, sample storage disabled")
		return nil
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created sample bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	bucket = cfg.MinioBucket
	return nil
}

// GetClient returns the MinIO client, or nil when storage is disabled.
func GetClient() *minio.Client {
	return minioClient
}

// PutSample uploads a sample audio object.
func PutSample(ctx context.Context, objectName string, r io.Reader, size int64) error {
	if minioClient == nil {
		return fmt.Errorf("sample storage not initialized")
	}
	_, err := minioClient.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: ContentTypeFor(objectName),
	})
	if err != nil {
		return fmt.Errorf("failed to upload sample %s: %w", objectName, err)
	}
	return nil
}

// GetSample opens a sample audio object for reading. The caller closes it.
func GetSample(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("sample storage not initialized")
	}
	object, err := minioClient.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get sample %s: %w", objectName, err)
	}
	return object, nil
}

// ContentTypeFor maps a sample object name to its media content type.
func ContentTypeFor(objectName string) string {
	switch {
	case strings.HasSuffix(objectName, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(objectName, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(objectName, ".ogg"):
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
