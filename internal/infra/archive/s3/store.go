// Package s3 implements the archive Store on an S3-compatible backend
// (AWS S3 or MinIO). One bucket holds all records; object keys follow the
// exams/<examID>/ layout, so listing an exam is a prefix scan.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"examcore/internal/archive/core"
)

// Store implements core.Store against a single bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// Config holds explicit construction parameters (mostly for tests). For prod
// we rely primarily on environment variables.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
}

// Environment variables (documented in README):
//   EXAMCORE_ARCHIVE_DRIVER=s3
//   EXAMCORE_ARCHIVE_S3_BUCKET=<bucket> (required)
//   EXAMCORE_ARCHIVE_S3_REGION=<region> (default us-east-1)
//   EXAMCORE_ARCHIVE_S3_ENDPOINT=<url> (optional, for MinIO)
//   EXAMCORE_ARCHIVE_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3 archive store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, presign: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

// OpenFromEnv constructs an S3 store from process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("EXAMCORE_ARCHIVE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("EXAMCORE_ARCHIVE_S3_BUCKET required for s3 driver")
	}
	return New(ctx, Config{
		Bucket:    bucket,
		Region:    os.Getenv("EXAMCORE_ARCHIVE_S3_REGION"),
		Endpoint:  os.Getenv("EXAMCORE_ARCHIVE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("EXAMCORE_ARCHIVE_S3_PATH_STYLE"), "true"),
	})
}

// Driver returns the archive driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// exists distinguishes "no such object" from transport failures on a head.
func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err == nil {
		return true, nil
	}
	var missing *types.NotFound
	if errors.As(err, &missing) {
		return false, nil
	}
	return false, err
}

// Write puts the payload with the ref carried as object metadata. S3 has no
// native create-only put here, so a head emulates it; concurrent writers are
// not a concern because keys embed a nanosecond timestamp.
func (s *Store) Write(ctx context.Context, ref core.RecordRef, payload []byte) (core.Record, error) {
	if err := ref.Validate(); err != nil {
		return core.Record{}, err
	}
	key := ref.Key()
	taken, err := s.exists(ctx, key)
	if err != nil {
		return core.Record{}, err
	}
	if taken {
		return core.Record{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(core.ContentType),
		Metadata:    map[string]string{"exam-id": ref.ExamID, "kind": ref.Kind},
	})
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{
		Key:        key,
		ExamID:     ref.ExamID,
		Kind:       ref.Kind,
		Size:       int64(len(payload)),
		ArchivedAt: ref.At.UTC(),
	}, nil
}

// Read returns the payload stored at key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if _, err := core.ParseKey(key); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
		}
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// List scans the exam's key prefix. The ref parsed back out of each key is
// authoritative for kind and archive time; objects that do not parse were not
// written by the recorder and are skipped.
func (s *Store) List(ctx context.Context, examID string) ([]core.Record, error) {
	if err := core.ValidateExamID(examID); err != nil {
		return nil, err
	}
	prefix := "exams/" + examID + "/"
	var out []core.Record
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			ref, err := core.ParseKey(aws.ToString(obj.Key))
			if err != nil {
				continue
			}
			out = append(out, core.Record{
				Key:        aws.ToString(obj.Key),
				ExamID:     ref.ExamID,
				Kind:       ref.Kind,
				Size:       aws.ToInt64(obj.Size),
				ArchivedAt: ref.At,
			})
		}
		if page.IsTruncated == nil || !*page.IsTruncated || page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}
	// ListObjectsV2 already returns keys in ascending order.
	return out, nil
}

// Delete removes the record, reporting whether it existed. DeleteObject is
// silent about missing keys, so a head settles it first.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := core.ParseKey(key); err != nil {
		return false, err
	}
	taken, err := s.exists(ctx, key)
	if err != nil || !taken {
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, err
	}
	return true, nil
}

// ShareURL presigns a GET so another module can fetch the record without
// archive credentials.
func (s *Store) ShareURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := core.ParseKey(key); err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	signed, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: &s.bucket, Key: &key},
		func(po *s3.PresignOptions) { po.Expires = expiry })
	if err != nil {
		return "", err
	}
	return signed.URL, nil
}
