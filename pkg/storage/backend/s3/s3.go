// Package s3 implements the bucket backend over Amazon S3 or an S3
// compatible service (MinIO, LocalStack).
//
// Files are objects under the configured key prefix. Directories are implicit
// in object keys and may additionally be materialized by a zero-byte marker
// object whose key ends in "/", which is how empty directories exist.
package s3

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/paths"
)

const dirContentType = "application/x-directory"

// Config holds configuration for the S3 backend.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// KeyPrefix is prepended to every key. A trailing "/" is added if missing.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// MaxRetries bounds SDK retries of transient errors. 0 keeps the SDK default.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// ForcePathStyle forces path-style addressing (required for LocalStack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Store is the S3 backend.
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	keyPrefix string

	mu     sync.RWMutex
	closed bool
}

var (
	_ backend.Backend   = (*Store)(nil)
	_ backend.Presigner = (*Store)(nil)
)

// New creates an S3 backend over an existing client.
func New(client *s3.Client, config Config) *Store {
	prefix := strings.Trim(config.KeyPrefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    config.Bucket,
		keyPrefix: prefix,
	}
}

// NewFromConfig creates an S3 backend by building a client from config.
func NewFromConfig(ctx context.Context, config Config) (*Store, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	if config.MaxRetries > 0 {
		maxAttempts := config.MaxRetries + 1
		opts = append(opts, awsconfig.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), maxAttempts)
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	logger.Debug("S3 backend configured",
		logger.KeyBucket, config.Bucket, logger.KeyRegion, config.Region, "endpoint", config.Endpoint)
	return New(s3.NewFromConfig(awsCfg, s3Opts...), config), nil
}

// Name implements backend.Backend.
func (s *Store) Name() string { return "bucket" }

func (s *Store) check(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return backend.Closed(key)
	}
	return nil
}

func (s *Store) objectKey(key string) string {
	return s.keyPrefix + key
}

// dirPrefix returns the listing prefix of a directory key.
func (s *Store) dirPrefix(key string) string {
	if key == "" {
		return s.keyPrefix
	}
	return s.keyPrefix + key + "/"
}

func (s *Store) keyOf(objectKey string) string {
	return strings.TrimSuffix(strings.TrimPrefix(objectKey, s.keyPrefix), "/")
}

// classify translates SDK errors into the storage taxonomy.
func classify(key string, err error) error {
	if err == nil {
		return nil
	}
	var se *storage.Error
	if errors.As(err, &se) {
		return se
	}

	var (
		noKey    *types.NoSuchKey
		notFound *types.NotFound
	)
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return &storage.Error{Kind: storage.KindNotFound, Path: key, Message: fmt.Sprintf("%q not found", key), Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return &storage.Error{Kind: storage.KindNotFound, Path: key, Message: fmt.Sprintf("%q not found", key), Err: err}
		case "AccessDenied", "Forbidden":
			return &storage.Error{Kind: storage.KindForbidden, Path: key, Message: "access denied by the bucket", Err: err}
		case "RequestTimeout", "RequestTimeoutException":
			return storage.NewTimeoutError(key, err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return &storage.Error{Kind: storage.KindNotFound, Path: key, Message: fmt.Sprintf("%q not found", key), Err: err}
	}
	return storage.AsError(key, err)
}

func isNotFound(err error) bool {
	return storage.IsNotFound(classify("", err))
}

func etagMD5(etag *string) string {
	e := strings.Trim(aws.ToString(etag), `"`)
	if strings.Contains(e, "-") {
		return "" // multipart upload, not an MD5
	}
	return e
}

func contentTypeByName(name string) string {
	if ext := strings.ToLower(path.Ext(name)); ext != "" {
		return mime.TypeByExtension(ext)
	}
	return ""
}

func (s *Store) fileEntry(key string, obj types.Object) backend.Entry {
	mod := aws.ToTime(obj.LastModified).UTC()
	return backend.Entry{
		Key:          key,
		Size:         aws.ToInt64(obj.Size),
		ContentType:  contentTypeByName(key),
		MD5:          etagMD5(obj.ETag),
		LastModified: mod,
		CreatedAt:    mod,
	}
}

// hasChildren reports whether any object lives under the directory key, and
// returns the directory marker's modification time when present.
func (s *Store) hasChildren(ctx context.Context, key string) (bool, time.Time, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirPrefix(key)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, time.Time{}, classify(key, err)
	}
	if len(out.Contents) == 0 {
		return false, time.Time{}, nil
	}
	var mod time.Time
	if aws.ToString(out.Contents[0].Key) == s.dirPrefix(key) {
		mod = aws.ToTime(out.Contents[0].LastModified).UTC()
	}
	return true, mod, nil
}

func (s *Store) headFile(ctx context.Context, key string) (*backend.Entry, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, classify(key, err)
	}
	mod := aws.ToTime(out.LastModified).UTC()
	return &backend.Entry{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		MD5:          etagMD5(out.ETag),
		LastModified: mod,
		CreatedAt:    mod,
	}, nil
}

// Stat implements backend.Backend.
func (s *Store) Stat(ctx context.Context, key string) (*backend.Entry, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	return s.stat(ctx, key)
}

func (s *Store) stat(ctx context.Context, key string) (*backend.Entry, error) {
	if key == "" {
		return &backend.Entry{IsDir: true}, nil
	}

	e, err := s.headFile(ctx, key)
	if err == nil {
		return e, nil
	}
	if !storage.IsNotFound(err) {
		return nil, err
	}

	ok, mod, err := s.hasChildren(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.NewNotFoundError(key)
	}
	return &backend.Entry{Key: key, IsDir: true, LastModified: mod, CreatedAt: mod}, nil
}

// List implements backend.Backend.
func (s *Store) List(ctx context.Context, dir string) ([]backend.Entry, error) {
	if err := s.check(dir); err != nil {
		return nil, err
	}

	prefix := s.dirPrefix(dir)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var (
		out   []backend.Entry
		found = dir == ""
	)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			found = true
			out = append(out, backend.Entry{Key: s.keyOf(aws.ToString(cp.Prefix)), IsDir: true})
		}
		for _, obj := range page.Contents {
			found = true
			k := aws.ToString(obj.Key)
			if k == prefix {
				continue // the directory's own marker
			}
			out = append(out, s.fileEntry(s.keyOf(k), obj))
		}
	}

	if !found {
		if _, err := s.headFile(ctx, dir); err == nil {
			return nil, backend.NotADirectory(dir)
		}
		return nil, storage.NewNotFoundError(dir)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Read implements backend.Backend.
func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, *backend.Entry, error) {
	if err := s.check(key); err != nil {
		return nil, nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		err = classify(key, err)
		if storage.IsNotFound(err) {
			if ok, _, _ := s.hasChildren(ctx, key); ok {
				return nil, nil, storage.NewInvalidInputError(key, "cannot read a directory")
			}
		}
		return nil, nil, err
	}
	mod := aws.ToTime(out.LastModified).UTC()
	return out.Body, &backend.Entry{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		MD5:          etagMD5(out.ETag),
		LastModified: mod,
		CreatedAt:    mod,
	}, nil
}

// Write implements backend.Backend. The body is buffered so the SDK can sign
// and retry it; upload size is bounded by the service before it gets here.
func (s *Store) Write(ctx context.Context, key string, r io.Reader, contentType string) (*backend.Entry, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, storage.NewInvalidInputError(key, "cannot write to the root")
	}
	if isDir, _, err := s.hasChildren(ctx, key); err != nil {
		return nil, err
	} else if isDir {
		return nil, storage.NewConflictError(key)
	}

	br := bufio.NewReaderSize(r, 4096)
	if contentType == "" {
		head, _ := br.Peek(3072)
		contentType = mimetype.Detect(head).String()
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, storage.NewBackendError(key, err)
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, classify(key, err)
	}

	now := time.Now().UTC()
	return &backend.Entry{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		MD5:          etagMD5(out.ETag),
		LastModified: now,
		CreatedAt:    now,
	}, nil
}

// objectsUnder returns every object key below the directory key, markers
// included.
func (s *Store) objectsUnder(ctx context.Context, key string) ([]types.Object, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.dirPrefix(key)),
	})
	var objs []types.Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(key, err)
		}
		objs = append(objs, page.Contents...)
	}
	return objs, nil
}

// Delete implements backend.Backend.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	if key == "" {
		return storage.NewInvalidInputError(key, "cannot delete the root")
	}

	e, err := s.stat(ctx, key)
	if err != nil {
		return err
	}
	// Keep the parent listable once its last child is gone.
	if parent := paths.Parent(key); parent != "" {
		if err := s.putMarker(ctx, parent); err != nil {
			return classify(parent, err)
		}
	}
	if !e.IsDir {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		return classify(key, err)
	}

	objs, err := s.objectsUnder(ctx, key)
	if err != nil {
		return err
	}
	for start := 0; start < len(objs); start += 1000 {
		end := min(start+1000, len(objs))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, o := range objs[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: o.Key})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return classify(key, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return storage.NewBackendError(key, fmt.Errorf("delete %s: %s: %s",
				aws.ToString(first.Key), aws.ToString(first.Code), aws.ToString(first.Message)))
		}
	}
	return nil
}

func (s *Store) copySource(objectKey string) string {
	segs := strings.Split(objectKey, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.bucket + "/" + strings.Join(segs, "/")
}

func (s *Store) copyObject(ctx context.Context, srcObj, dstObj string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstObj),
		CopySource: aws.String(s.copySource(srcObj)),
	})
	return err
}

// Copy implements backend.Backend.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if err := s.check(src); err != nil {
		return err
	}
	_, err := s.copyTree(ctx, src, dst)
	return err
}

// copyTree copies src to dst and returns the source object keys it copied.
func (s *Store) copyTree(ctx context.Context, src, dst string) ([]string, error) {
	if src == "" || dst == "" {
		return nil, storage.NewInvalidInputError(src, "cannot move or copy the root")
	}
	if paths.IsWithin(dst, src) {
		return nil, storage.NewInvalidInputError(dst, "cannot move or copy a directory into itself")
	}
	e, err := s.stat(ctx, src)
	if err != nil {
		return nil, err
	}
	if _, err := s.stat(ctx, dst); err == nil {
		return nil, storage.NewConflictError(dst)
	} else if !storage.IsNotFound(err) {
		return nil, err
	}

	if !e.IsDir {
		if err := s.copyObject(ctx, s.objectKey(src), s.objectKey(dst)); err != nil {
			return nil, classify(src, err)
		}
		return []string{s.objectKey(src)}, nil
	}

	objs, err := s.objectsUnder(ctx, src)
	if err != nil {
		return nil, err
	}
	copied := make([]string, 0, len(objs))
	srcPrefix, dstPrefix := s.dirPrefix(src), s.dirPrefix(dst)
	for _, o := range objs {
		k := aws.ToString(o.Key)
		if err := s.copyObject(ctx, k, dstPrefix+strings.TrimPrefix(k, srcPrefix)); err != nil {
			s.rollback(ctx, dst)
			return nil, classify(src, err)
		}
		copied = append(copied, k)
	}
	return copied, nil
}

func (s *Store) rollback(ctx context.Context, dst string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.Delete(ctx, dst); err != nil && !isNotFound(err) {
		logger.Warn("Failed to roll back partial copy", logger.KeyBucket, s.bucket, logger.KeyKey, dst, logger.KeyError, err)
	}
}

// Move implements backend.Backend as copy followed by delete of the source.
func (s *Store) Move(ctx context.Context, src, dst string) error {
	if err := s.check(src); err != nil {
		return err
	}
	if _, err := s.copyTree(ctx, src, dst); err != nil {
		return err
	}
	return s.Delete(ctx, src)
}

// Mkdir implements backend.Backend by writing a directory marker.
func (s *Store) Mkdir(ctx context.Context, key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	if _, err := s.stat(ctx, key); err == nil {
		return storage.NewConflictError(key)
	} else if !storage.IsNotFound(err) {
		return err
	}

	return classify(key, s.putMarker(ctx, key))
}

func (s *Store) putMarker(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.dirPrefix(key)),
		Body:        bytes.NewReader(nil),
		ContentType: aws.String(dirContentType),
	})
	return err
}

// Walk implements backend.Backend. Intermediate directories without markers
// are synthesized from object keys.
func (s *Store) Walk(ctx context.Context, dir string, fn backend.WalkFunc) error {
	if err := s.check(dir); err != nil {
		return err
	}
	if dir != "" {
		e, err := s.stat(ctx, dir)
		if err != nil {
			return err
		}
		if !e.IsDir {
			return backend.NotADirectory(dir)
		}
	}

	objs, err := s.objectsUnder(ctx, dir)
	if err != nil {
		return err
	}

	byKey := make(map[string]backend.Entry)
	for _, o := range objs {
		raw := aws.ToString(o.Key)
		key := s.keyOf(raw)
		if key == dir {
			continue
		}
		if strings.HasSuffix(raw, "/") {
			mod := aws.ToTime(o.LastModified).UTC()
			byKey[key] = backend.Entry{Key: key, IsDir: true, LastModified: mod, CreatedAt: mod}
		} else {
			byKey[key] = s.fileEntry(key, o)
		}
		for parent := paths.Parent(key); parent != dir && paths.IsWithin(parent, dir); parent = paths.Parent(parent) {
			if _, ok := byKey[parent]; !ok {
				byKey[parent] = backend.Entry{Key: parent, IsDir: true}
			}
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var skipped []string
next:
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, sk := range skipped {
			if paths.IsWithin(k, sk) {
				continue next
			}
		}
		e := byKey[k]
		if err := fn(e); err != nil {
			if errors.Is(err, backend.ErrSkipDir) && e.IsDir {
				skipped = append(skipped, k)
				continue
			}
			return err
		}
	}
	return nil
}

// PresignUpload implements backend.Presigner with a presigned PUT.
func (s *Store) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if err := s.check(key); err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := s.presigner.PresignPutObject(ctx, in, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", classify(key, err)
	}
	return req.URL, nil
}

// HealthCheck implements backend.Backend with a HeadBucket call.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.check(""); err != nil {
		return err
	}
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return storage.NewBackendError("", fmt.Errorf("S3 health check failed: %w", err))
	}
	return nil
}

// Close implements backend.Backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
