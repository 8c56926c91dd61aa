// Package s3 serves objects from a bucket on any S3-compatible endpoint.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/edgeshelf"
)

// Config holds the connection settings for an S3-compatible bucket.
type Config struct {
	Endpoint         string `mapstructure:"endpoint"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Prefix           string `mapstructure:"prefix"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// passthroughHeaders are the stored HTTP headers copied onto served responses.
var passthroughHeaders = []string{
	"Content-Disposition",
	"Content-Encoding",
	"Content-Language",
	"Expires",
}

type objectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Header       http.Header
}

type client interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, objectInfo, error)
	Stat(ctx context.Context, bucket, key string) (objectInfo, error)
	List(ctx context.Context, bucket, prefix, startAfter string, limit int) ([]objectInfo, error)
	Put(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (objectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
}

// Store is an edgeshelf.ObjectStore backed by an S3 bucket.
type Store struct {
	client client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	mc, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}

	store := &Store{
		client: mc,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: cleanPrefix(cfg.Prefix),
	}

	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func newWithClient(bucket, prefix string, c client) *Store {
	return &Store{client: c, bucket: strings.TrimSpace(bucket), prefix: cleanPrefix(prefix)}
}

// Get opens an object. Stored Content-Disposition, Content-Encoding,
// Content-Language and Expires headers are returned in the record metadata.
func (s *Store) Get(ctx context.Context, name string) (edgeshelf.ObjectRecord, error) {
	key, err := s.key(name)
	if err != nil {
		return edgeshelf.ObjectRecord{}, fmt.Errorf("get object: %w", err)
	}

	body, info, err := s.client.Get(ctx, s.bucket, key)
	if err != nil {
		return edgeshelf.ObjectRecord{}, fmt.Errorf("get object %q: %w", key, err)
	}

	return edgeshelf.ObjectRecord{
		Name:         name,
		Body:         body,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         strings.Trim(info.ETag, `"`),
		LastModified: info.LastModified,
		Metadata:     info.Header,
	}, nil
}

// List returns objects under prefix in key order. The cursor is the last
// name of the previous page.
func (s *Store) List(ctx context.Context, q edgeshelf.ListQuery) (edgeshelf.ListResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	startAfter := ""
	if q.Cursor != "" {
		if !edgeshelf.IsValidName(q.Cursor) {
			return edgeshelf.ListResult{}, fmt.Errorf("list objects: %w: invalid cursor", edgeshelf.ErrInvalidInput)
		}
		startAfter = s.join(q.Cursor)
	}

	infos, err := s.client.List(ctx, s.bucket, s.join(q.Prefix), startAfter, limit+1)
	if err != nil {
		return edgeshelf.ListResult{}, fmt.Errorf("list objects: %w", err)
	}

	items := make([]edgeshelf.MetaData, 0, min(len(infos), limit))
	for _, info := range infos {
		if len(items) == limit {
			break
		}
		items = append(items, s.metaData(info))
	}

	var next string
	if len(infos) > limit {
		next = items[len(items)-1].Name
	}

	return edgeshelf.ListResult{Items: items, NextCursor: next}, nil
}

func (s *Store) Put(ctx context.Context, obj edgeshelf.PutObject, content io.Reader) (edgeshelf.MetaData, error) {
	if obj.ContentType == "" {
		return edgeshelf.MetaData{}, fmt.Errorf("put object: %w: content type cannot be empty", edgeshelf.ErrInvalidInput)
	}

	key, err := s.key(obj.Name)
	if err != nil {
		return edgeshelf.MetaData{}, fmt.Errorf("put object: %w", err)
	}

	info, err := s.client.Put(ctx, s.bucket, key, content, obj.ContentType)
	if err != nil {
		return edgeshelf.MetaData{}, fmt.Errorf("put object %q: %w", key, err)
	}

	if info.ContentType == "" {
		info.ContentType = obj.ContentType
	}
	if info.LastModified.IsZero() {
		info.LastModified = time.Now().UTC()
	}

	return s.metaData(info), nil
}

// Delete removes an object. S3 deletes are idempotent, so existence is
// checked first to report ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	key, err := s.key(name)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if _, err := s.client.Stat(ctx, s.bucket, key); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}

	if err := s.client.Delete(ctx, s.bucket, key); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}

	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.CreateBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) metaData(info objectInfo) edgeshelf.MetaData {
	name := strings.TrimPrefix(info.Key, s.prefix+"/")
	if s.prefix == "" {
		name = info.Key
	}

	return edgeshelf.MetaData{
		ID:            uuid.NewSHA1(uuid.NameSpaceURL, []byte("s3://"+s.bucket+"/"+info.Key)),
		Name:          name,
		ContentType:   info.ContentType,
		Etag:          strings.Trim(info.ETag, `"`),
		FileSizeBytes: info.Size,
		CreatedAt:     info.LastModified,
		UpdatedAt:     info.LastModified,
	}
}

func (s *Store) key(name string) (string, error) {
	if !edgeshelf.IsValidName(name) {
		return "", fmt.Errorf("%w: invalid object name %q", edgeshelf.ErrInvalidInput, name)
	}
	return s.join(name), nil
}

func (s *Store) join(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.Trim(prefix, "/"))
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}

func newMinioClient(cfg Config) (*minioClient, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	clientImpl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &minioClient{client: clientImpl}, nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint URL: %w", err)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("endpoint host is required")
		}
		return parsed.Host, parsed.Scheme == "https", nil
	}
	return raw, useSSL, nil
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) Get(ctx context.Context, bucket, key string) (io.ReadCloser, objectInfo, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectInfo{}, mapMinioErr(err)
	}

	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, objectInfo{}, mapMinioErr(err)
	}

	return obj, toObjectInfo(stat), nil
}

func (m *minioClient) Stat(ctx context.Context, bucket, key string) (objectInfo, error) {
	stat, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return objectInfo{}, mapMinioErr(err)
	}
	return toObjectInfo(stat), nil
}

func (m *minioClient) List(ctx context.Context, bucket, prefix, startAfter string, limit int) ([]objectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: startAfter,
		Recursive:  true,
		MaxKeys:    limit,
	}

	infos := make([]objectInfo, 0, limit)
	for obj := range m.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return nil, mapMinioErr(obj.Err)
		}
		infos = append(infos, toObjectInfo(obj))
		if len(infos) == limit {
			break
		}
	}

	return infos, nil
}

func (m *minioClient) Put(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (objectInfo, error) {
	upload, err := m.client.PutObject(ctx, bucket, key, reader, -1, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return objectInfo{}, mapMinioErr(err)
	}
	return objectInfo{
		Key:          upload.Key,
		Size:         upload.Size,
		ETag:         upload.ETag,
		ContentType:  contentType,
		LastModified: upload.LastModified,
	}, nil
}

func (m *minioClient) Delete(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapMinioErr(err)
	}
	return nil
}

func (m *minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapMinioErr(err)
	}
	return exists, nil
}

func (m *minioClient) CreateBucket(ctx context.Context, bucket, region string) error {
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return mapMinioErr(err)
	}
	return nil
}

func toObjectInfo(obj minio.ObjectInfo) objectInfo {
	return objectInfo{
		Key:          obj.Key,
		Size:         obj.Size,
		ETag:         obj.ETag,
		ContentType:  obj.ContentType,
		LastModified: obj.LastModified,
		Header:       pickHeaders(obj.Metadata),
	}
}

func pickHeaders(src http.Header) http.Header {
	if len(src) == 0 {
		return nil
	}
	h := make(http.Header)
	for _, name := range passthroughHeaders {
		if v := src.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	return h
}

func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NotFound":
			return edgeshelf.ErrNotFound
		}
	}
	return err
}
