package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Manager provides file operations confined to a base directory
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// NewManager creates a file manager rooted at baseDir
func NewManager(baseDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "file_manager")),
	}
}

// BaseDir returns the root directory
func (m *Manager) BaseDir() string { return m.baseDir }

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	fullPath, err := m.resolvePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// EnsureDirectory creates a directory with all parents
func (m *Manager) EnsureDirectory(path string) error {
	fullPath, err := m.resolvePath(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(fullPath, 0755)
}

// ReadFile reads the entire content of a file
func (m *Manager) ReadFile(path string) ([]byte, error) {
	fullPath, err := m.resolvePath(path)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Reading file",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.ReadFile(fullPath)
}

// WriteFile writes data through a temporary file and a rename, so readers
// never observe a partial file.
func (m *Manager) WriteFile(path string, data []byte) error {
	fullPath, err := m.resolvePath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	m.logger.Debug("Wrote file",
		slog.String("path", path),
		slog.Int("size_bytes", len(data)))

	return nil
}

// RemoveAll deletes path and everything below it
func (m *Manager) RemoveAll(path string) error {
	fullPath, err := m.resolvePath(path)
	if err != nil {
		return err
	}
	if fullPath == filepath.Clean(m.baseDir) {
		return fmt.Errorf("refusing to remove base directory")
	}

	m.logger.Info("Removing path", slog.String("path", path))
	return os.RemoveAll(fullPath)
}

// Resolve returns the absolute location of path below the base directory
func (m *Manager) Resolve(path string) (string, error) {
	return m.resolvePath(path)
}

// resolvePath joins relative paths onto the base directory and rejects any
// that would escape it. Absolute paths are used as given.
func (m *Manager) resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	base := filepath.Clean(m.baseDir)
	full := filepath.Join(base, path)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", path, base)
	}
	return full, nil
}
