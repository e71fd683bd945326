// Package s3store implements chunkstore.Store against Amazon S3 or any
// S3-compatible provider using the AWS SDK v2: one object per chunk, keyed
// by the hex-encoded post-hash.
package s3store

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
)

// Config holds the connection parameters for an S3-compatible backend.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // non-empty for MinIO / non-AWS providers
	AccessKey string
	SecretKey string
	KeyPrefix string // optional prefix prepended to every object key
	PathStyle bool   // forced path-style addressing (MinIO, most self-hosted S3)
}

// Store is a chunkstore.Store backed by a single S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds a Store from cfg, using static credentials when provided and
// falling back to the SDK's default provider chain otherwise.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3store: bucket is required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.KeyPrefix,
	}, nil
}

func (s *Store) objectKey(key [chunkstore.KeySize]byte) string {
	return s.prefix + hex.EncodeToString(key[:])
}

// Put implements chunkstore.Store. S3 PutObject already overwrites
// unconditionally, so idempotence for identical (key, blob) pairs is
// maintained by construction: convergent encryption guarantees that a given
// post-hash is always paired with the same ciphertext, so a second Put under
// the same key is a harmless overwrite with identical bytes.
func (s *Store) Put(ctx context.Context, key [chunkstore.KeySize]byte, blob []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(blob),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %s: %w", s.objectKey(key), err)
	}
	return nil
}

// Get implements chunkstore.Store.
func (s *Store) Get(ctx context.Context, key [chunkstore.KeySize]byte) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, chunkstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3store: get %s: %w", s.objectKey(key), err)
	}
	defer out.Body.Close()

	blob, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read body of %s: %w", s.objectKey(key), err)
	}
	return blob, nil
}

// Delete implements chunkstore.Store. The SDK's DeleteObject does not
// distinguish "already absent" from "deleted", so a HeadObject is used to
// surface ErrNotFound per spec §4.D.
func (s *Store) Delete(ctx context.Context, key [chunkstore.KeySize]byte) error {
	objKey := s.objectKey(key)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return chunkstore.ErrNotFound
		}
		return fmt.Errorf("s3store: head %s: %w", objKey, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	}); err != nil {
		return fmt.Errorf("s3store: delete %s: %w", objKey, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}
