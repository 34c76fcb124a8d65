// Package files is a thin metadata CRUD layer over blob storage in S3
// (or an S3-compatible endpoint). The orchestrator never talks to this
// package directly — it only ever sees a resolved URL or data URI inside
// an input_image content part; this package exists so that URL has
// somewhere real to resolve from.
package files

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/idgen"
)

type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// Object is the only metadata persisted for an uploaded file: no content
// parsing, no antivirus, no per-purpose validation and no size limit.
type Object struct {
	ID        string
	Filename  string
	Bytes     int64
	Purpose   string
	CreatedAt time.Time
}

// Store is the S3-backed blob store plus an in-process metadata index.
// The metadata index is memory-only by design: only the blob content
// itself needs to survive a restart, and that lives in the bucket.
type Store struct {
	client *s3.Client
	bucket string

	mu    sync.RWMutex
	index map[string]*Object
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.Endpoint != ""
	})

	return &Store{client: client, bucket: cfg.Bucket, index: make(map[string]*Object)}, nil
}

func objectKey(id string) string { return "files/" + id }

func (s *Store) Upload(ctx context.Context, filename, purpose string, body io.Reader) (*Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperror.Newf(apperror.KindInvalidRequest, "read upload body: %v", err)
	}

	id := idgen.File()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return nil, apperror.Newf(apperror.KindServerError, "upload to blob storage: %v", err)
	}

	obj := &Object{ID: id, Filename: filename, Bytes: int64(len(data)), Purpose: purpose, CreatedAt: time.Now()}

	s.mu.Lock()
	s.index[id] = obj
	s.mu.Unlock()

	return obj, nil
}

func (s *Store) Get(id string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.index[id]

	return obj, ok
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	_, ok := s.index[id]
	delete(s.index, id)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		return true, apperror.Newf(apperror.KindServerError, "delete from blob storage: %v", err)
	}

	return true, nil
}
