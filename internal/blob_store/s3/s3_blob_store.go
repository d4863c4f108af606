package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/AnishMulay/blockfs/internal/blob_store"
	"github.com/AnishMulay/blockfs/internal/log_service"
)

type Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// S3BlobStore stores each blob as one object, s3://Bucket/Prefix/key.
type S3BlobStore struct {
	client s3iface.S3API
	bucket string
	prefix string
	ls     log_service.LogService
}

// NewS3BlobStore builds a client from the default credential chain. A custom
// Endpoint switches to path style addressing for S3 compatible servers.
func NewS3BlobStore(opts Options, ls log_service.LogService) (*S3BlobStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 blob store: bucket is required")
	}

	cfg := aws.NewConfig()
	if opts.Region != "" {
		cfg = cfg.WithRegion(opts.Region)
	}
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return NewS3BlobStoreWithClient(s3.New(sess), opts.Bucket, opts.Prefix, ls), nil
}

func NewS3BlobStoreWithClient(client s3iface.S3API, bucket, prefix string, ls log_service.LogService) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket, prefix: prefix, ls: ls}
}

func (s *S3BlobStore) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3BlobStore) Save(ctx context.Context, key string, data []byte) error {
	if err := blob_store.ValidateKey(key); err != nil {
		return err
	}

	objectKey := s.objectKey(key)
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objectKey,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to put blob object",
			Metadata: map[string]any{"bucket": s.bucket, "key": objectKey, "error": err.Error()},
		})
		return fmt.Errorf("%w: s3://%s/%s: %w", blob_store.ErrBlobWriteFailed, s.bucket, objectKey, err)
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Blob object written",
		Metadata: map[string]any{"bucket": s.bucket, "key": objectKey, "size": len(data)},
	})
	return nil
}

func (s *S3BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := blob_store.ValidateKey(key); err != nil {
		return nil, err
	}

	objectKey := s.objectKey(key)
	rsp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", blob_store.ErrBlobNotFound, s.bucket, objectKey)
		}
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to get blob object",
			Metadata: map[string]any{"bucket": s.bucket, "key": objectKey, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: s3://%s/%s: %w", blob_store.ErrBlobReadFailed, s.bucket, objectKey, err)
	}
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading s3://%s/%s: %w", blob_store.ErrBlobReadFailed, s.bucket, objectKey, err)
	}
	return data, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	if err := blob_store.ValidateKey(key); err != nil {
		return err
	}

	objectKey := s.objectKey(key)
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	if err != nil && !isNoSuchKey(err) {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to delete blob object",
			Metadata: map[string]any{"bucket": s.bucket, "key": objectKey, "error": err.Error()},
		})
		return fmt.Errorf("%w: s3://%s/%s: %w", blob_store.ErrBlobDeleteFailed, s.bucket, objectKey, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey
}

var _ blob_store.BlobStore = (*S3BlobStore)(nil)
