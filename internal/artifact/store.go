// Package artifact publishes versioned ruleset artifacts to S3-compatible
// object storage and tears them down after a run.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectStore is the storage surface the publisher needs.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data io.Reader) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
	EnsureBucket(ctx context.Context, bucket string) error
}

// S3Store talks to MinIO or any S3-compatible endpoint.
type S3Store struct {
	endpoint string
	logger   *zap.Logger
	client   *s3.Client
}

// NewS3Store builds a client for the given endpoint with static credentials.
// MinIO wants path-style addressing.
func NewS3Store(endpoint, accessKey, secretKey string, logger *zap.Logger) (*S3Store, error) {
	creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion("us-east-1"),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		endpoint: endpoint,
		logger:   logger,
		client:   client,
	}, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *S3Store) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	s.logger.Info("created bucket", zap.String("bucket", bucket))
	return nil
}

// Upload stores an object.
func (s *S3Store) Upload(ctx context.Context, bucket, key string, data io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get retrieves an object.
func (s *S3Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	return result.Body, nil
}

// List returns keys under a prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	for {
		result, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", bucket, err)
		}
		for _, obj := range result.Contents {
			keys = append(keys, *obj.Key)
		}
		if result.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = result.NextContinuationToken
	}
	return keys, nil
}

// Delete removes an object. Deleting a missing key is not an error on S3.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// MemoryStore is an in-process ObjectStore for tests.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string][]byte)}
}

// EnsureBucket creates the bucket if missing.
func (m *MemoryStore) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
	return nil
}

// Upload stores the object bytes.
func (m *MemoryStore) Upload(_ context.Context, bucket, key string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
	m.buckets[bucket][key] = b
	return nil
}

// Get retrieves the object bytes.
func (m *MemoryStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objs, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("get object %s/%s: bucket not found", bucket, key)
	}
	b, ok := objs[key]
	if !ok {
		return nil, fmt.Errorf("get object %s/%s: key not found", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// List returns keys under a prefix in sorted order.
func (m *MemoryStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.buckets[bucket] {
		if prefix == "" || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the object; missing keys are a no-op like S3.
func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if objs, ok := m.buckets[bucket]; ok {
		delete(objs, key)
	}
	return nil
}
