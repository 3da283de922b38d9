// Package s3 implementa el object store sobre un bucket S3 (o compatible,
// ej. MinIO / Supabase Storage con gateway S3).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"breast-screening-service/internal/ports/objectstore"
)

type Config struct {
	Bucket string

	// PublicBase es la base de URLs públicas (sin slash final). Si está
	// vacía, PublicURL devuelve el path sin resolver.
	PublicBase string
}

type Store struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

func NewStore(client *s3.Client, cfg Config) *Store {
	return &Store{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
	}
}

// NewClient arma el cliente S3 con la cadena de credenciales por defecto.
// UsePathStyle permite apuntar BaseEndpoint a un MinIO local.
func NewClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	}), nil
}

func (s *Store) Upload(ctx context.Context, path string, data []byte, opts objectstore.UploadOptions) error {
	if path == "" {
		return fmt.Errorf("empty object path")
	}

	// S3 no distingue create de overwrite; el chequeo de colisión queda en
	// el naming (timestamp en el key).
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &path,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}
	return nil
}

func (s *Store) Download(ctx context.Context, path string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &path,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, objectstore.ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}

func (s *Store) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if s.publicBase == "" {
		return path
	}
	return s.publicBase + "/" + s.bucket + "/" + strings.TrimLeft(path, "/")
}
