package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DiskStore keeps uploads on the local filesystem under dir and builds
// public URLs beneath prefix.
type DiskStore struct {
	dir      string
	prefix   string
	maxBytes int64
	logger   zerolog.Logger
}

// NewDiskStore creates the upload directory when missing.
func NewDiskStore(dir, prefix string, maxBytes int64, logger zerolog.Logger) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("media dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if prefix == "" {
		prefix = "/uploads"
	}
	return &DiskStore{
		dir:      dir,
		prefix:   "/" + strings.Trim(prefix, "/"),
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// Dir is the root directory uploads are written to.
func (s *DiskStore) Dir() string { return s.dir }

// Prefix is the URL path uploads are served under.
func (s *DiskStore) Prefix() string { return s.prefix }

// Upload writes r to <dir>/<folder>/<uuid><ext>. The client supplied
// filename is never used on disk.
func (s *DiskStore) Upload(ctx context.Context, folder, filename, contentType string, r io.Reader) (string, error) {
	if !validFolder(folder) {
		return "", fmt.Errorf("media: unknown folder %q", folder)
	}
	ext, err := Extension(contentType)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	folderDir := filepath.Join(s.dir, folder)
	if err := os.MkdirAll(folderDir, 0o755); err != nil {
		return "", fmt.Errorf("create media folder: %w", err)
	}

	name := uuid.NewString() + ext
	target := filepath.Join(folderDir, name)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr == nil && s.maxBytes > 0 && written > s.maxBytes {
		copyErr = fmt.Errorf("media: upload exceeds %d bytes", s.maxBytes)
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		if copyErr != nil {
			return "", fmt.Errorf("write media file: %w", copyErr)
		}
		return "", fmt.Errorf("close media file: %w", closeErr)
	}

	s.logger.Debug().Str("folder", folder).Str("file", name).Str("original", filename).Int64("bytes", written).Msg("media stored")
	return path.Join(s.prefix, folder, name), nil
}
