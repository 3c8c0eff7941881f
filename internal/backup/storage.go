package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// ArtifactStore writes artifacts to object storage.
type ArtifactStore interface {
	// Put uploads body under key and returns its public URL.
	Put(ctx context.Context, key string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// Enabled reports whether enough is configured to upload.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// ErrStorageNotConfigured is returned by uploads when no bucket is configured.
var ErrStorageNotConfigured = errors.New("object storage not configured")

// NewArtifactStore returns an S3Store, or a store that rejects every upload
// when cfg is incomplete.
func NewArtifactStore(cfg S3Config) ArtifactStore {
	if !cfg.Enabled() {
		return unconfiguredStore{}
	}
	return NewS3Store(cfg)
}

type unconfiguredStore struct{}

func (unconfiguredStore) Put(context.Context, string, []byte) (string, error) {
	return "", ErrStorageNotConfigured
}

func (unconfiguredStore) Delete(context.Context, string) error {
	return ErrStorageNotConfigured
}

// S3Store stores artifacts as publicly readable objects.
type S3Store struct {
	client s3Client
	cfg    S3Config
}

func NewS3Store(cfg S3Config) *S3Store {
	return &S3Store{client: newS3Client(cfg), cfg: cfg}
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.Endpoint != "",
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return s.URL(key), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete from s3: %w", err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + escaped
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + escaped
	default:
		region := s.cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, region, escaped)
	}
}

// ObjectKey names the artifact for a practice (nil for a global backup)
// taken at now: backup-<date>-<practice|full>-<suffix>.json.
func ObjectKey(now time.Time, practiceID *string) string {
	label := "full"
	if practiceID != nil {
		label = *practiceID
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("backup-%s-%s-%s.json", now.UTC().Format("2006-01-02"), label, suffix)
}
