/*
Package storage offloads attachment payloads to S3-compatible blob storage.

Blob storage is optional: when no bucket is configured, attachments stay inline in the
message log and the constructors here are never called.
*/
package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Enabled reports whether enough configuration is present to reach a bucket.
func (c ServiceConfig) Enabled() bool {
	return c.S3BucketName != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// BlobStore is the attachment payload store.
type BlobStore interface {
	// Put uploads data under key.
	Put(ctx context.Context, key, mimeType string, data []byte) error

	// PresignDownload generates a pre-signed URL for downloading a blob.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the blob stored under key.
	Delete(ctx context.Context, key string) error
}

// NewBlobStore is the factory function for BlobStore. Only S3-compatible backends are
// supported.
func NewBlobStore(ctx context.Context, cfg ServiceConfig) (BlobStore, error) {
	return newS3Client(ctx, cfg)
}
