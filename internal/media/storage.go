package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// Storage location tags carried on chat_media rows.
const (
	LocationLocal  = "local"
	LocationAmazon = "amazon"
)

// StoredObject describes where an attachment ended up.
type StoredObject struct {
	Path     string // public URL or object key
	Location string // LocationLocal or LocationAmazon
	Size     int64
}

// Store persists downloaded attachments.
type Store interface {
	Put(ctx context.Context, orgID int64, filename, contentType string, data []byte) (*StoredObject, error)
}

// ObjectKey builds the per-organization storage key for one attachment.
func ObjectKey(orgID int64, filename string) string {
	return fmt.Sprintf("uploads/media/received/%d/%s", orgID, filename)
}

// Filename derives the stored file name: content hash plus receive time, with
// an extension guessed from the content type.
func Filename(data []byte, contentType string) string {
	sum := sha1.Sum(data)
	name := fmt.Sprintf("%x_%d", sum, utils.Now().Unix())
	if ext := extensionFor(contentType); ext != "" {
		name += ext
	}
	return name
}

func extensionFor(contentType string) string {
	// Strip parameters like "; codecs=opus" before lookup.
	base := strings.TrimSpace(strings.Split(contentType, ";")[0])
	switch base {
	case "image/jpeg":
		return ".jpg"
	case "audio/ogg":
		return ".ogg"
	}
	exts, err := mime.ExtensionsByType(base)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// LocalStore writes attachments under a directory served as static files.
type LocalStore struct {
	baseDir       string
	publicBaseURL string
}

// NewLocalStore creates a disk-backed store rooted at baseDir.
func NewLocalStore(baseDir, publicBaseURL string) *LocalStore {
	return &LocalStore{baseDir: baseDir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Put writes the attachment to disk and returns its public URL.
func (s *LocalStore) Put(ctx context.Context, orgID int64, filename, contentType string, data []byte) (*StoredObject, error) {
	key := ObjectKey(orgID, filename)
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write media file: %w", err)
	}

	return &StoredObject{
		Path:     s.publicBaseURL + "/" + key,
		Location: LocationLocal,
		Size:     int64(len(data)),
	}, nil
}

// S3Store writes attachments to an S3-compatible bucket.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates a bucket-backed store.
func NewS3Store(client *minio.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Put uploads the attachment under a random per-organization key. The stored
// name stays random so object keys never leak content hashes; the original
// extension is kept for content-type sniffing downstream.
func (s *S3Store) Put(ctx context.Context, orgID int64, filename, contentType string, data []byte) (*StoredObject, error) {
	key := ObjectKey(orgID, fmt.Sprintf("%s_%d%s", uuid.NewString(), utils.Now().Unix(), path.Ext(filename)))

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload media to bucket %s: %w", s.bucket, err)
	}

	return &StoredObject{
		Path:     key,
		Location: LocationAmazon,
		Size:     int64(len(data)),
	}, nil
}

var _ Store = (*LocalStore)(nil)
var _ Store = (*S3Store)(nil)
