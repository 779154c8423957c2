// Package media stores and deletes the voice and video payloads attached to
// wishes. A media reference is an S3 object key.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps media objects under a key prefix in one bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	log    *logger.Logger
}

// NewS3Store returns a store for bucket. prefix is prepended to generated
// keys and may be empty.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, log: logger.With("component", "media")}
}

// Key returns the object key for a wish's media file.
func (s *S3Store) Key(wishID, filename string) string {
	return s.prefix + wishID + "/" + filename
}

// Put uploads a payload and returns its reference.
func (s *S3Store) Put(ctx context.Context, wishID, filename, contentType string, body io.Reader) (string, error) {
	key := s.Key(wishID, filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// Delete removes the object behind ref. Deleting a missing object is not
// an error.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return domain.Validationf("empty media reference")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	s.log.Debug("media deleted", "ref", ref)
	return nil
}
