// Package minio archives raw structure uploads in S3-compatible object
// storage and serves stored objects to the ingest worker.
package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

// MinIOAPI is the subset of the MinIO SDK the archive uses.  OpenObject
// stands in for GetObject so readers can be faked in tests.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

// sdkAPI adapts *minio.Client to MinIOAPI.
type sdkAPI struct {
	*minio.Client
}

func (a sdkAPI) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}

// MinIOConfig configures the connection and the upload bucket.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	UploadBucket    string `mapstructure:"upload_bucket"`
	// UploadExpiryDays expires archived uploads; 0 keeps them forever.
	UploadExpiryDays int           `mapstructure:"upload_expiry_days"`
	MaxObjectBytes   int64         `mapstructure:"max_object_bytes"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

// MinIOClient owns the SDK handle and the bucket layout.
type MinIOClient struct {
	client MinIOAPI
	config *MinIOConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewMinIOClient connects, verifies reachability and prepares the upload
// bucket.
func NewMinIOClient(cfg *MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	applyDefaults(cfg)

	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	c := NewMinIOClientWithAPI(sdkAPI{sdk}, cfg, log)
	if _, err := sdk.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	c.SetupLifecycleRules(ctx)

	log.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewMinIOClientWithAPI wraps an existing API implementation without any
// network calls.
func NewMinIOClientWithAPI(api MinIOAPI, cfg *MinIOConfig, log logging.Logger) *MinIOClient {
	applyDefaults(cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MinIOClient{client: api, config: cfg, logger: log}
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.UploadBucket == "" {
		cfg.UploadBucket = "molstruct-uploads"
	}
	if cfg.MaxObjectBytes == 0 {
		cfg.MaxObjectBytes = 10 << 20
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

// EnsureBucket creates the upload bucket when missing.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	bucket := c.config.UploadBucket
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to create bucket").WithDetail(bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", bucket))
	return nil
}

// SetupLifecycleRules installs the upload expiry rule.  Failures only warn:
// some S3-compatible backends reject lifecycle configuration.
func (c *MinIOClient) SetupLifecycleRules(ctx context.Context) {
	if c.config.UploadExpiryDays <= 0 {
		return
	}
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     "uploads-expiry",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(c.config.UploadExpiryDays),
			},
		},
	}
	if err := c.client.SetBucketLifecycle(ctx, c.config.UploadBucket, cfg); err != nil {
		c.logger.Warn("Failed to set lifecycle for upload bucket", logging.Err(err))
	}
}

// GetClient returns the underlying API.
func (c *MinIOClient) GetClient() MinIOAPI {
	return c.client
}

// UploadBucket is the bucket archived uploads are written to.
func (c *MinIOClient) UploadBucket() string {
	return c.config.UploadBucket
}

var ErrMinIOClientClosed = errors.New(errors.ErrCodeServiceUnavailable, "minio client is closed")

func (c *MinIOClient) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrMinIOClientClosed
	}
	return nil
}

// Close marks the client closed.  The SDK holds no resources to release.
func (c *MinIOClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// HealthStatus reports reachability of the backend and the upload bucket.
type HealthStatus struct {
	Healthy bool
	Latency time.Duration
	Error   string
}

// HealthCheck lists buckets and confirms the upload bucket exists.
func (c *MinIOClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	_, err := c.client.ListBuckets(ctx)
	status := &HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
		return status, err
	}

	exists, err := c.client.BucketExists(ctx, c.config.UploadBucket)
	if err != nil || !exists {
		status.Healthy = false
		status.Error = "upload bucket " + c.config.UploadBucket + " missing"
	}
	return status, nil
}

//Personal.AI order the ending
