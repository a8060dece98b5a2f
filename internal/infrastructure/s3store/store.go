// Package s3store keeps registry state as one object in an S3-compatible
// bucket, so several machines can share a set of layouts.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/snapshot"
	"github.com/zjrosen/dockyard/internal/log"
)

const contentType = "application/json"

// Client is the subset of the S3 API the store uses.
type Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options locates the state object.
type Options struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // non-empty enables path-style addressing (MinIO and similar)
}

// Store implements domain.Store on a single S3 object.
type Store struct {
	client Client
	bucket string
	key    string
	now    func() time.Time
}

var _ domain.Store = (*Store)(nil)

// New builds a store from the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" || opts.Key == "" {
		return nil, errors.New("s3 store requires a bucket and key")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(cfg, s3opts...), opts.Bucket, opts.Key), nil
}

// NewWithClient builds a store on an existing client.
func NewWithClient(client Client, bucket, key string) *Store {
	return &Store{client: client, bucket: bucket, key: key, now: time.Now}
}

// Name identifies the backend in traces and logs.
func (s *Store) Name() string {
	return "s3"
}

// Load fetches and decodes the state object. A missing or blank object
// reads as nil. An undecodable object is copied to a backup key and also
// reads as nil.
func (s *Store) Load(ctx context.Context) (*domain.RawState, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	raw, recordErrs, err := snapshot.DecodeState(data)
	if err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d.bak", s.key, s.now().Unix())
		if putErr := s.put(ctx, backup, data); putErr != nil {
			return nil, fmt.Errorf("state object is corrupt and could not be backed up: %w", putErr)
		}
		log.WarnErr(log.CatStore, "state object is corrupt, copied aside", err, "bucket", s.bucket, "backup", backup)
		return nil, nil
	}
	for _, recErr := range recordErrs {
		log.WarnErr(log.CatStore, "dropping unreadable layout", recErr, "bucket", s.bucket, "key", s.key)
	}
	return raw, nil
}

// Save uploads st as the state object.
func (s *Store) Save(ctx context.Context, st domain.State) error {
	data, err := snapshot.EncodeState(st)
	if err != nil {
		return fmt.Errorf("encoding layouts: %w", err)
	}
	return s.put(ctx, s.key, data)
}

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client has nothing to release.
func (s *Store) Close() error {
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}
