package source

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinioStore reads raw objects from a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(client *minio.Client) *MinioStore {
	return &MinioStore{client: client}
}

func (s *MinioStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.client == nil {
		return nil, fmt.Errorf("minio client is nil")
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read object: %w", err)
	}

	return data, nil
}

var _ ObjectStore = (*MinioStore)(nil)
