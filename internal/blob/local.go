package blob

import (
	"context"
	"os"
	"path/filepath"
)

// Local is the default backend: relPath resolves directly under dataDir,
// matching §6's filesystem layout with no indirection.
type Local struct {
	DataDir string
}

var _ Store = (*Local)(nil)

func (l *Local) LocalPath(ctx context.Context, relPath string) (string, error) {
	full := filepath.Join(l.DataDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	return full, nil
}

func (l *Local) Persist(ctx context.Context, relPath string) error {
	return nil
}

func (l *Local) Exists(ctx context.Context, relPath string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.DataDir, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
