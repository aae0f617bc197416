package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// FileArtifactStore is a content-addressed artifact store over a local
// directory. The reference is the SHA-256 of the stored bytes, so an
// artifact can never be silently replaced under the same reference.
type FileArtifactStore struct {
	dir string
}

// NewFileArtifactStore creates the backing directory if needed.
func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir %q: %w", dir, err)
	}
	return &FileArtifactStore{dir: dir}, nil
}

// UploadEncrypted stores the blob and returns its content reference.
func (fs *FileArtifactStore) UploadEncrypted(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	path := filepath.Join(fs.dir, ref)

	// Content addressing makes the write idempotent.
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", ref, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit artifact %s: %w", ref, err)
	}
	return ref, nil
}

// Fetch retrieves an artifact by its content reference.
func (fs *FileArtifactStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(fs.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", ref, err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != ref {
		return nil, fmt.Errorf("artifact %s failed content verification", ref)
	}
	return data, nil
}
