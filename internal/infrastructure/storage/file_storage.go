package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/order-workflow/internal/application/port"
	"go.uber.org/zap"
)

// ErrPathEscapesRoot is returned for relative paths that resolve outside the export root
var ErrPathEscapesRoot = errors.New("path escapes export root")

// ExportStorage keeps generated reports under a single root directory
type ExportStorage struct {
	root   string
	logger *zap.Logger
}

// NewExportStorage creates the root directory if needed
func NewExportStorage(root string, logger *zap.Logger) (port.FileStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve export root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export root: %w", err)
	}
	return &ExportStorage{root: abs, logger: logger}, nil
}

// Save writes content through a temp file so readers never see a partial report
func (s *ExportStorage) Save(ctx context.Context, path string, content []byte) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("Failed to create report directory", zap.String("dir", dir), zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		s.logger.Error("Failed to move report into place", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to store report: %w", err)
	}

	s.logger.Debug("Report stored", zap.String("path", fullPath), zap.Int("size", len(content)))
	return nil
}

// Read returns a stored report
func (s *ExportStorage) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return content, nil
}

// Exists reports whether a report is stored at path
func (s *ExportStorage) Exists(ctx context.Context, path string) bool {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// Delete removes a stored report. Missing files are not an error.
func (s *ExportStorage) Delete(ctx context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete report", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// GetFullPath joins relativePath onto the export root
func (s *ExportStorage) GetFullPath(relativePath string) string {
	return filepath.Join(s.root, relativePath)
}

func (s *ExportStorage) resolve(relativePath string) (string, error) {
	fullPath := s.GetFullPath(relativePath)
	if fullPath == s.root || !strings.HasPrefix(fullPath, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, relativePath)
	}
	return fullPath, nil
}
