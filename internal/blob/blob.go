// ABOUTME: Blob Store interface with GCS and in-memory implementations
// ABOUTME: File ids are object names under a per-tenant folder

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// ErrNotFound is returned when a file id does not exist.
var ErrNotFound = errors.New("blob not found")

// Store uploads and reads attachments.
type Store interface {
	Upload(ctx context.Context, folder, filename, mimeType string, data []byte) (string, error)
	Read(ctx context.Context, fileID string) (mimeType string, data []byte, err error)
}

// objectName builds folder/uuid-filename, dropping any directories the
// client put in filename.
func objectName(prefix, folder, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	return path.Join(prefix, folder, uuid.NewString()+"-"+base)
}

// GCSStore keeps blobs in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewGCSStore creates a store for bucket. An empty credentialsFile uses
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: slog.Default().With("component", "blob"),
	}, nil
}

// Close releases the storage client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}

// Upload implements Store.
func (g *GCSStore) Upload(ctx context.Context, folder, filename, mimeType string, data []byte) (string, error) {
	name := objectName(g.prefix, folder, filename)

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = mimeType
	w.CacheControl = "private, max-age=3600"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing object %s: %w", name, err)
	}

	g.logger.Info("blob uploaded", "object", name, "bytes", len(data))
	return name, nil
}

// Read implements Store.
func (g *GCSStore) Read(ctx context.Context, fileID string) (string, []byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(fileID).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	if err != nil {
		return "", nil, fmt.Errorf("opening object %s: %w", fileID, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("reading object %s: %w", fileID, err)
	}
	return r.Attrs.ContentType, data, nil
}

type memoryObject struct {
	mimeType string
	data     []byte
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Upload implements Store.
func (m *MemoryStore) Upload(ctx context.Context, folder, filename, mimeType string, data []byte) (string, error) {
	name := objectName("", folder, filename)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = memoryObject{mimeType: mimeType, data: bytes.Clone(data)}
	return name, nil
}

// Read implements Store.
func (m *MemoryStore) Read(ctx context.Context, fileID string) (string, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[fileID]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return obj.mimeType, bytes.Clone(obj.data), nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
