// Package s3blob stores uploaded documents in an S3 compatible bucket.
package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-member-auth"
)

type Config struct {
	Bucket string
	Region string
	// Endpoint is set for S3 compatible services such as MinIO.
	Endpoint string
	Key      string
	Secret   string
	// PublicBase overrides the URL prefix returned for stored objects.
	PublicBase string
}

type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store writes objects with a public-read ACL.
type Store struct {
	cfg    Config
	client putter
}

var _ auth.BlobStore = (*Store)(nil)

var loadDefaultAWSConfig = config.LoadDefaultConfig

// New creates a Store. Static credentials are used when both key and secret
// are set, otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, goerrors.New("s3 bucket is required", goerrors.CategoryBadInput)
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Key != "" && cfg.Secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{cfg: cfg, client: client}, nil
}

// Put implements auth.BlobStore.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store object").
			WithMetadata(map[string]any{"bucket": s.cfg.Bucket, "key": key})
	}

	return s.ObjectURL(key), nil
}

// ObjectURL returns the public URL of key.
func (s *Store) ObjectURL(key string) string {
	escaped := escapeKey(key)

	if s.cfg.PublicBase != "" {
		return strings.TrimRight(s.cfg.PublicBase, "/") + "/" + escaped
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
