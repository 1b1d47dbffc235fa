// Package s3 implements the storage gateway on an S3-compatible endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/config"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/storage"
)

const backend = "s3"

// Gateway stores objects in one bucket.
type Gateway struct {
	api     s3iface.S3API
	bucket  string
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a gateway with static credentials and path-style addressing.
func New(cfg config.StorageConfig) (*Gateway, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.Region),
		Endpoint:         aws.String(cfg.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	return NewWithClient(awss3.New(sess), cfg.Bucket), nil
}

// NewWithClient creates a gateway on an existing client.
func NewWithClient(api s3iface.S3API, bucket string) *Gateway {
	return &Gateway{
		api:     api,
		bucket:  bucket,
		metrics: metrics.DefaultMetrics,
		log:     logging.WithComponent("storage-s3"),
	}
}

// List returns the objects directly under prefix. S3 has no creation time,
// so CreatedAt is the last modification time.
func (g *Gateway) List(ctx context.Context, prefix string, opts storage.ListOptions) (entries []storage.Entry, err error) {
	defer g.observe("list", time.Now(), &err)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	in := &awss3.ListObjectsV2Input{
		Bucket:    aws.String(g.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	err = g.api.ListObjectsV2PagesWithContext(ctx, in, func(page *awss3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if name == "" {
				continue
			}
			modified := aws.TimeValue(obj.LastModified)
			entries = append(entries, storage.Entry{
				Name:      name,
				Size:      aws.Int64Value(obj.Size),
				CreatedAt: modified,
				UpdatedAt: modified,
			})
		}
		return true
	})
	if err != nil {
		return nil, mapError(prefix, err)
	}
	return storage.Apply(entries, opts), nil
}

// Download returns the object body.
func (g *Gateway) Download(ctx context.Context, key string) (data []byte, err error) {
	defer g.observe("download", time.Now(), &err)
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	out, err := g.api.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(key, err)
	}
	defer out.Body.Close()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Upload creates key. Without Upsert an existing key is ErrAlreadyExists.
func (g *Gateway) Upload(ctx context.Context, key string, data []byte, opts storage.UploadOptions) (err error) {
	defer g.observe("upload", time.Now(), &err)
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if !opts.Upsert {
		exists, err := g.exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s: %w", key, storage.ErrAlreadyExists)
		}
	}
	return g.put(ctx, key, data, opts)
}

// Update overwrites an existing key.
func (g *Gateway) Update(ctx context.Context, key string, data []byte, opts storage.UploadOptions) (err error) {
	defer g.observe("update", time.Now(), &err)
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	exists, err := g.exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return g.put(ctx, key, data, opts)
}

// Copy duplicates src to dst. An existing dst is ErrAlreadyExists.
func (g *Gateway) Copy(ctx context.Context, src, dst string) (err error) {
	defer g.observe("copy", time.Now(), &err)
	if err := storage.ValidateKey(src); err != nil {
		return err
	}
	if err := storage.ValidateKey(dst); err != nil {
		return err
	}
	exists, err := g.exists(ctx, dst)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", dst, storage.ErrAlreadyExists)
	}

	_, err = g.api.CopyObjectWithContext(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(g.bucket),
		CopySource: aws.String(copySource(g.bucket, src)),
		Key:        aws.String(dst),
	})
	if err != nil {
		return mapError(src, err)
	}
	return nil
}

// Remove deletes keys in one batch. Missing keys are ignored.
func (g *Gateway) Remove(ctx context.Context, keys []string) (err error) {
	defer g.observe("remove", time.Now(), &err)
	if len(keys) == 0 {
		return nil
	}
	ids := make([]*awss3.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		if err := storage.ValidateKey(k); err != nil {
			return err
		}
		ids = append(ids, &awss3.ObjectIdentifier{Key: aws.String(k)})
	}

	out, err := g.api.DeleteObjectsWithContext(ctx, &awss3.DeleteObjectsInput{
		Bucket: aws.String(g.bucket),
		Delete: &awss3.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return mapError(keys[0], err)
	}
	for _, e := range out.Errors {
		if aws.StringValue(e.Code) == awss3.ErrCodeNoSuchKey {
			continue
		}
		return fmt.Errorf("remove %s: %s: %s", aws.StringValue(e.Key), aws.StringValue(e.Code), aws.StringValue(e.Message))
	}
	return nil
}

func (g *Gateway) put(ctx context.Context, key string, data []byte, opts storage.UploadOptions) error {
	in := &awss3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		in.CacheControl = aws.String(cacheControl(opts.CacheControl))
	}
	if _, err := g.api.PutObjectWithContext(ctx, in); err != nil {
		return mapError(key, err)
	}
	return nil
}

func (g *Gateway) exists(ctx context.Context, key string) (bool, error) {
	_, err := g.api.HeadObjectWithContext(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if err = mapError(key, err); errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (g *Gateway) observe(op string, start time.Time, err *error) {
	g.metrics.RecordStorageOp(backend, op, *err, time.Since(start).Seconds())
	if *err != nil && !errors.Is(*err, storage.ErrNotFound) && !errors.Is(*err, storage.ErrAlreadyExists) {
		g.log.Warn().Err(*err).Str("op", op).Str("bucket", g.bucket).Msg("Storage operation failed")
	}
}

// mapError turns not-found responses into storage.ErrNotFound.
func mapError(key string, err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case awss3.ErrCodeNoSuchKey, "NotFound":
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", key, err)
}

// copySource URL-encodes each segment of bucket/key.
func copySource(bucket, key string) string {
	parts := strings.Split(bucket+"/"+key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// cacheControl expands a bare max-age in seconds to a header value.
func cacheControl(v string) string {
	for _, r := range v {
		if r < '0' || r > '9' {
			return v
		}
	}
	return "max-age=" + v
}
