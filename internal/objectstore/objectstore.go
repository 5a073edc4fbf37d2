// Package objectstore relays report files and utility bills to an
// S3-compatible object store and derives their public URLs.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iliyamo/utility-audit-portal/internal/config"
	"github.com/iliyamo/utility-audit-portal/internal/model"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrTooLarge       = errors.New("object exceeds bucket size limit")
)

// Bucket is the storage surface the services depend on.
type Bucket interface {
	UploadFile(ctx context.Context, bucket, key string, r io.ReadSeeker, size int64, contentType string) (string, error)
	PublicURL(bucket, key string) string
	DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, model.StoredObject, error)
	List(ctx context.Context, bucket string) ([]model.StoredObject, error)
	Delete(ctx context.Context, bucket, key string) error
}

// objectAPI is the subset of *minio.Client used here.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Store implements Bucket on top of minio-go.
type Store struct {
	api       objectAPI
	publicURL string
	maxBytes  int64
}

// New connects to the configured endpoint.  No request is made until the
// first operation.
func New(cfg config.StorageConfig) (*Store, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	return newStore(cl, cfg.PublicURL, cfg.MaxObjectBytes), nil
}

func newStore(api objectAPI, publicURL string, maxBytes int64) *Store {
	return &Store{api: api, publicURL: strings.TrimRight(publicURL, "/"), maxBytes: maxBytes}
}

// UploadFile stores r under key and returns the key.  A missing bucket is
// created public-read and the upload is retried exactly once.
func (s *Store) UploadFile(ctx context.Context, bucket, key string, r io.ReadSeeker, size int64, contentType string) (string, error) {
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", ErrTooLarge
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.api.PutObject(ctx, bucket, key, r, size, opts)
	if err == nil {
		return key, nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchBucket" {
		return "", fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	if err := s.createPublicBucket(ctx, bucket); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	if _, err := s.api.PutObject(ctx, bucket, key, r, size, opts); err != nil {
		return "", fmt.Errorf("put %s/%s after bucket create: %w", bucket, key, err)
	}
	return key, nil
}

func (s *Store) createPublicBucket(ctx context.Context, bucket string) error {
	if err := s.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		// another request may have won the race
		if code := minio.ToErrorResponse(err).Code; code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	if err := s.api.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return fmt.Errorf("set policy on %s: %w", bucket, err)
	}
	return nil
}

// PublicURL is pure string construction; it does not check the object exists.
func (s *Store) PublicURL(bucket, key string) string {
	return PublicURL(s.publicURL, bucket, key)
}

// DownloadFile opens the object for reading.  The caller closes the reader.
func (s *Store) DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, model.StoredObject, error) {
	info, err := s.api.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, model.StoredObject{}, ErrObjectNotFound
		}
		return nil, model.StoredObject{}, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}
	obj, err := s.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, model.StoredObject{}, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return obj, s.toStored(bucket, info), nil
}

// List returns every object in the bucket.  A bucket that does not exist yet
// lists as empty.
func (s *Store) List(ctx context.Context, bucket string) ([]model.StoredObject, error) {
	out := []model.StoredObject{}
	for info := range s.api.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			if minio.ToErrorResponse(info.Err).Code == "NoSuchBucket" {
				return out, nil
			}
			return nil, fmt.Errorf("list %s: %w", bucket, info.Err)
		}
		out = append(out, s.toStored(bucket, info))
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := s.api.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Store) toStored(bucket string, info minio.ObjectInfo) model.StoredObject {
	return model.StoredObject{
		Name:         info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified.UTC(),
		PublicURL:    s.PublicURL(bucket, info.Key),
	}
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// PublicURL joins base, bucket and key into the object's public address.
func PublicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + url.PathEscape(key)
}

// NewObjectKey returns a collision-resistant key of the form
// <unixMillis>-<random>.<ext>, keeping the extension of the original name.
func NewObjectKey(originalName string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, ext)
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}
