package objectstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound cuando el path no existe en el bucket.
	ErrNotFound = errors.New("object not found")
)

// UploadOptions controla la subida.
// Overwrite=false y path existente => el adapter decide si falla (S3 no
// distingue; el memory store sí, para que los tests detecten colisiones).
type UploadOptions struct {
	Overwrite   bool
	ContentType string
}

// Store abstrae el almacenamiento de imágenes (bucket breast-cancer-images).
// El bucket es configuración del adapter, no parámetro de cada llamada.
type Store interface {
	Upload(ctx context.Context, path string, data []byte, opts UploadOptions) error
	Download(ctx context.Context, path string) ([]byte, error)

	// PublicURL es resolución pura path->URL, sin I/O:
	// - path vacío => "" (no es error)
	// - path ya absoluto (http/https) => se devuelve tal cual
	PublicURL(path string) string
}
