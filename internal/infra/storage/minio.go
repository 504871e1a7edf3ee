package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

// Store mirrors texture backups into a MinIO / S3 bucket.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
}

var _ domain.BackupMirror = (*Store)(nil)

// New connects to MinIO and makes sure the bucket exists. Object keys are
// placed under prefix when it is non-empty.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey, prefix string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect %s: %w", endpoint, err)
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("storage: create bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region, prefix: prefix}, nil
}

// Upload implements textures.BackupMirror.
func (s *Store) Upload(ctx context.Context, localPath, key string) (string, error) {
	objectKey := ObjectKey(s.prefix, key)
	_, err := s.client.FPutObject(ctx, s.bucketName, objectKey, localPath, minio.PutObjectOptions{
		ContentType: ContentType(localPath),
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", objectKey, err)
	}

	// Public URL; private buckets need a presigned URL instead.
	url := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucketName, objectKey)
	return url, nil
}

// ObjectKey joins prefix and key with forward slashes.
func ObjectKey(prefix, key string) string {
	key = strings.TrimLeft(filepath.ToSlash(key), "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// ContentType guesses the object type from the file extension.
func ContentType(localPath string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); t != "" {
		return t
	}
	return "application/octet-stream"
}
