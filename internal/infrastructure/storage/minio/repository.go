package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrObjectTooLarge = errors.New(errors.ErrCodePayloadTooLarge, "object exceeds the size limit")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// ─────────────────────────────────────────────────────────────────────────────
// UploadArchive
// ─────────────────────────────────────────────────────────────────────────────

// UploadArchive stores raw upload bytes and reads objects back for ingestion.
type UploadArchive struct {
	client *MinIOClient
	logger logging.Logger
}

// NewUploadArchive binds the archive to a connected client.
func NewUploadArchive(client *MinIOClient, log logging.Logger) *UploadArchive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &UploadArchive{client: client, logger: log}
}

// PutObject writes data under key in the upload bucket.
func (a *UploadArchive) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrInvalidRequest.WithDetail("object key is required")
	}
	if err := a.client.checkOpen(); err != nil {
		return err
	}
	bucket := a.client.UploadBucket()
	_, err := a.client.GetClient().PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "upload failed").WithDetail(bucket + "/" + key)
	}
	a.logger.Debug("object archived",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int("size", len(data)))
	return nil
}

// GetObject reads a whole object.  Objects larger than the configured limit
// are refused before any bytes are transferred.
func (a *UploadArchive) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" || key == "" {
		return nil, ErrInvalidRequest.WithDetail("bucket and object key are required")
	}
	if err := a.client.checkOpen(); err != nil {
		return nil, err
	}
	api := a.client.GetClient()
	limit := a.client.config.MaxObjectBytes

	info, err := api.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapObjectError(err, bucket, key)
	}
	if info.Size > limit {
		return nil, ErrObjectTooLarge.WithDetail(bucket + "/" + key)
	}

	rc, err := api.OpenObject(ctx, bucket, key)
	if err != nil {
		return nil, mapObjectError(err, bucket, key)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, mapObjectError(err, bucket, key)
	}
	if int64(len(data)) > limit {
		return nil, ErrObjectTooLarge.WithDetail(bucket + "/" + key)
	}
	return data, nil
}

func mapObjectError(err error, bucket, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrObjectNotFound.WithDetail(bucket + "/" + key).WithCause(err)
	}
	return errors.Wrap(err, errors.CodeStorageError, "download failed").WithDetail(bucket + "/" + key)
}

//Personal.AI order the ending
