package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object is an opened stored object.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// ImagePrefix is the key prefix under which pet pictures are stored.
const ImagePrefix = "pets/"

// Storage wraps an ObjectStorage backend and names pet image objects.
type Storage struct {
	backend ObjectStorage
	newID   func() string
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend, newID: uuid.NewString}
}

// ImageKey returns a fresh object key for an upload named filename,
// keeping only its lower-cased extension.
func (s *Storage) ImageKey(filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	return ImagePrefix + s.newID() + ext
}

// IsImageKey reports whether ref names an object this storage wrote, as
// opposed to an external URL recorded on the pet.
func IsImageKey(ref string) bool {
	return strings.HasPrefix(ref, ImagePrefix) && !strings.Contains(ref, "..")
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (Object, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
