package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// S3 stores uploads in a MinIO/S3 bucket under "<id>/<name>" keys.
type S3 struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3 creates a MinIO client from the Config.
func NewS3(cfg *config.Config) (*S3, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3{client: client, bucket: cfg.Bucket, region: cfg.S3Region}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func prefixOf(id uploadid.ID) string { return id.String() + "/" }

// Create implements Store. The size is unknown up front, so the client
// streams the body as a multipart upload.
func (s *S3) Create(ctx context.Context, id uploadid.ID, name string, r io.Reader) (int64, error) {
	if err := ValidName(name); err != nil {
		return 0, err
	}
	if s.exists(ctx, id) {
		return 0, ErrExists
	}
	info, err := s.client.PutObject(ctx, s.bucket, prefixOf(id)+name, r, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("put object: %w", err)
	}
	return info.Size, nil
}

func (s *S3) exists(ctx context.Context, id uploadid.ID) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefixOf(id), MaxKeys: 1}) {
		return obj.Err == nil
	}
	return false
}

// Open implements Store.
func (s *S3) Open(ctx context.Context, id uploadid.ID, name string) (*Object, error) {
	if err := ValidName(name); err != nil {
		return nil, ErrNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucket, prefixOf(id)+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	// GetObject is lazy; Stat performs the request.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &Object{ReadSeekCloser: obj, Name: name, Size: info.Size, ModTime: info.LastModified}, nil
}

// Remove implements Store.
func (s *S3) Remove(ctx context.Context, id uploadid.ID) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefixOf(id), Recursive: true})
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		return fmt.Errorf("remove object %s: %w", rerr.ObjectName, rerr.Err)
	}
	return nil
}

// List implements Store.
func (s *S3) List(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		if key, ok := strings.CutSuffix(obj.Key, "/"); ok {
			names = append(names, key)
		}
	}
	return names, nil
}
