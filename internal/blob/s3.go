package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 backs the §6 path layout with a MinIO/S3-compatible bucket, caching
// objects under a local scratch directory so ffmpeg and the HTTP clients
// still get a real filesystem path to operate on. Grounded on the
// teacher's MinioStorage.UploadTranscodedFile/DownloadFile pair.
type S3 struct {
	client     *minio.Client
	bucket     string
	cacheDir   string
}

var _ Store = (*S3)(nil)

func NewS3(endpoint, accessKey, secretKey, bucket string, useSSL bool, cacheDir string) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &S3{client: client, bucket: bucket, cacheDir: cacheDir}, nil
}

func (s *S3) LocalPath(ctx context.Context, relPath string) (string, error) {
	local := filepath.Join(s.cacheDir, relPath)
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", err
	}

	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	objectKey := toObjectKey(relPath)
	if err := s.client.FGetObject(ctx, s.bucket, objectKey, local, minio.GetObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return local, nil // caller is about to write a new object
		}
		return "", fmt.Errorf("download %s from bucket %s: %w", objectKey, s.bucket, err)
	}
	return local, nil
}

func (s *S3) Persist(ctx context.Context, relPath string) error {
	local := filepath.Join(s.cacheDir, relPath)
	objectKey := toObjectKey(relPath)
	_, err := s.client.FPutObject(ctx, s.bucket, objectKey, local, minio.PutObjectOptions{
		ContentType: contentTypeFor(relPath),
	})
	if err != nil {
		return fmt.Errorf("upload %s to bucket %s: %w", objectKey, s.bucket, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, relPath string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, toObjectKey(relPath), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func toObjectKey(relPath string) string {
	return strings.TrimPrefix(filepath.ToSlash(relPath), "/")
}

func contentTypeFor(relPath string) string {
	switch filepath.Ext(relPath) {
	case ".mp4":
		return "video/mp4"
	case ".wav":
		return "audio/wav"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".srt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
