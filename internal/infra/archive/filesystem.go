package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

// FilesystemArchive writes each terminal route log as a JSONL file named
// after the job id, one entry per line.
type FilesystemArchive struct {
	dir string
}

func NewFilesystemArchive(dir string) *FilesystemArchive {
	return &FilesystemArchive{dir: dir}
}

func (a *FilesystemArchive) Archive(_ context.Context, jobID string, entries []domain.RouteLogEntry) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	path := filepath.Join(a.dir, jobID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("write archive entry: %w", err)
		}
	}
	return nil
}
