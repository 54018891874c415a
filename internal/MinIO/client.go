package MinIO

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"drive-service/internal/errs"
)

type Config struct {
	Endpoint  string `env:"MINIO_ENDPOINT" env-default:"minio:9000"`
	Bucket    string `env:"MINIO_BUCKET_NAME" env-default:"storage"`
	AccessKey string `env:"MINIO_ACCESS_KEY" env-default:"admin"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	// KeyPrefix is prepended to every object key.
	KeyPrefix string `env:"MINIO_KEY_PREFIX" env-default:"blobs/"`
}

// MinIOClient stores blobs as objects named by a random uuid.
type MinIOClient struct {
	Client *minio.Client
	Bucket string
	prefix string
}

// New connects to MinIO and creates the bucket when it is missing.
func New(ctx context.Context, cfg Config) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := client.BucketExists(ctx, cfg.Bucket)
		if !(errBucketExists == nil && exists) {
			return nil, fmt.Errorf("failed to create bucket %q and it does not exist: %w", cfg.Bucket, err)
		}
	}

	return &MinIOClient{Client: client, Bucket: cfg.Bucket, prefix: cfg.KeyPrefix}, nil
}

func (m *MinIOClient) key(handle string) string {
	return m.prefix + handle
}

func (m *MinIOClient) Put(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	handle := uuid.NewString()
	_, err := m.Client.PutObject(ctx, m.Bucket, m.key(handle), io.LimitReader(r, size), size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return handle, nil
}

// Open stats the object first so a missing blob is reported here rather
// than on the first read.
func (m *MinIOClient) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	obj, err := m.Client.GetObject(ctx, m.Bucket, m.key(handle), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(handle, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(handle, err)
	}
	return obj, nil
}

func (m *MinIOClient) Delete(ctx context.Context, handle string) error {
	return m.Client.RemoveObject(ctx, m.Bucket, m.key(handle), minio.RemoveObjectOptions{})
}

func mapError(handle string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("blob %s: %w", handle, errs.ErrNotFound)
	}
	return err
}
