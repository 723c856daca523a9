package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"FragFM/config"
	"FragFM/core/errs"
	"FragFM/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectAPI is the subset of *minio.Client the gateway uses.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Gateway is the narrow object store interface used by the rest of the
// application: put, signed read URL and prefix delete.
type Gateway struct {
	client objectAPI
	bucket string
}

// NewGateway connects to MinIO and makes sure the bucket exists.
func NewGateway(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	logger.Info("connecting to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.Bool("ssl", cfg.MinioUseSSL))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("MinIO client initialized", logger.String("bucket", cfg.MinioBucket))
	return &Gateway{client: client, bucket: cfg.MinioBucket}, nil
}

// Bucket returns the bucket name.
func (g *Gateway) Bucket() string { return g.bucket }

// Put writes or overwrites an object.
func (g *Gateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(ctx, g.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errs.E(errs.StorageWrite, "storage.Put", "failed to store "+key, err)
	}
	return nil
}

// SignedReadURL issues a presigned GET URL. The object is not required to
// exist; signing happens locally.
func (g *Gateway) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := g.client.PresignedGetObject(ctx, g.bucket, key, ttl, nil)
	if err != nil {
		return "", errs.E(errs.StorageRead, "storage.SignedReadURL", "failed to sign a read URL", err)
	}
	return u.String(), nil
}

// Delete removes exactly one object. Removing a missing object is not an
// error.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	const op = "storage.Delete"
	if key == "" {
		return errs.Validationf(op, "refusing to delete an empty key")
	}
	if err := g.client.RemoveObject(ctx, g.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errs.E(errs.StorageDelete, op, "failed to delete stored object", fmt.Errorf("remove %s: %w", key, err))
	}
	return nil
}

// DeletePrefix removes every object under prefix. An empty listing is not an
// error. Deletion continues past individual failures and the first one is
// reported; running it again only sees what is left.
func (g *Gateway) DeletePrefix(ctx context.Context, prefix string) error {
	const op = "storage.DeletePrefix"
	if prefix == "" {
		return errs.Validationf(op, "refusing to delete with an empty prefix")
	}

	var firstErr error
	removed, failed := 0, 0
	for object := range g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("list %s: %w", prefix, object.Err)
			}
			failed++
			// a failed listing ends the channel; nothing more will arrive
			continue
		}
		if err := g.client.RemoveObject(ctx, g.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", object.Key, err)
			}
			failed++
			continue
		}
		removed++
	}

	if firstErr != nil {
		logger.Warn("prefix delete incomplete",
			logger.String("prefix", prefix),
			logger.Int("removed", removed),
			logger.Int("failed", failed),
			logger.ErrorField(firstErr))
		return errs.E(errs.StorageDelete, op, "failed to delete stored objects", firstErr)
	}
	if removed > 0 {
		logger.Info("prefix deleted", logger.String("prefix", prefix), logger.Int("objects", removed))
	}
	return nil
}
