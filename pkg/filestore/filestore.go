// Package filestore implements the flat on-disk attachment store the
// Task Runner (C6) syncs sandbox files through (sync_to_storage,
// sync_to_sandbox, spec §4.5). No repo in the example pack wires a
// blob/object-storage SDK (no S3, GCS, or MinIO client anywhere in
// go.mod across the teacher or the rest of the pack), and
// original_source's own FileStorage port is a local-disk
// implementation too — so this stays on the standard library
// (os/io) rather than reaching for a library nothing in the corpus
// demonstrates using for this purpose.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/opsforge/agentcore/pkg/model"
)

// Store is a flat-directory attachment store keyed by a random FileID;
// Filename/ContentType/UserID are tracked only in the FileInfo the
// caller persists into the session's Files list, not on disk.
type Store struct {
	root string
}

// New builds a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// Upload writes r's content under a fresh FileID and returns the
// FileInfo describing it (FilePath left empty — the caller fills it in
// when the upload is a sandbox-file sync, spec §4.5 sync_to_storage).
func (s *Store) Upload(ctx context.Context, r io.Reader, filename, userID string) (*model.FileInfo, error) {
	id, err := newFileID()
	if err != nil {
		return nil, err
	}
	path := s.path(id)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("filestore: write %s: %w", path, err)
	}
	return &model.FileInfo{
		FileID:     id,
		Filename:   filename,
		Size:       n,
		UploadDate: time.Now().UTC(),
		UserID:     userID,
	}, nil
}

// Download opens the file behind id. The caller is responsible for
// closing the returned ReadCloser.
func (s *Store) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", id, err)
	}
	return f, nil
}

// Remove deletes the file behind id. Removing an already-missing file
// is not an error (spec §4.2 remove_file is idempotent from the
// session's point of view; the blob itself may already be gone).
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove %s: %w", id, err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id)
}

func newFileID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("filestore: generate file id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
