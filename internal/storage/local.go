// Package storage stores uploaded and generated files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"crowdstack-backend/internal/domain"
)

var ErrInvalidPath = errors.New("invalid storage path")

// Local keeps objects under Dir/<bucket>/<path> and hands out URLs under
// BaseURL + "/files/".
type Local struct {
	Dir     string
	BaseURL string
}

func (l Local) Upload(ctx context.Context, bucket, objectPath string, data []byte, mime string) (string, error) {
	rel, err := objectKey(bucket, objectPath)
	if err != nil {
		return "", err
	}
	full := filepath.Join(l.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store %s: %w", rel, err)
	}
	return strings.TrimRight(l.BaseURL, "/") + "/files/" + rel, nil
}

func (l Local) Delete(ctx context.Context, bucket, objectPath string) error {
	rel, err := objectKey(bucket, objectPath)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.Dir, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	return nil
}

// Read returns a stored object. Directories are reported as not found.
func (l Local) Read(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	rel, err := objectKey(bucket, objectPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	full := filepath.Join(l.Dir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, rel)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, nil
}

func objectKey(bucket, objectPath string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}
	clean := path.Clean("/" + strings.ReplaceAll(objectPath, `\`, "/"))
	if clean == "/" || strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	return bucket + clean, nil
}
