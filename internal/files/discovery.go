package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ecomeda/internal/config"
)

// FileInfo describes one discovered file or report directory
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// dataExtensions are the formats the loader reads
var dataExtensions = map[string]struct{}{
	config.FormatCSV:  {},
	config.FormatTSV:  {},
	config.FormatXLSX: {},
	config.FormatXLSM: {},
}

// IsDataFile reports whether name has a loadable extension
func IsDataFile(name string) bool {
	_, ok := dataExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// isDataEntry keeps regular data files, skipping dotfiles and the ~$ lock
// files Excel leaves next to open workbooks
func isDataEntry(e fs.DirEntry) bool {
	name := e.Name()
	if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return IsDataFile(name)
}

func isDirEntry(e fs.DirEntry) bool {
	return e.IsDir()
}

// Discovery lists directory contents relative to a base path
type Discovery struct {
	basePath string
}

// NewDiscovery creates a discovery rooted at basePath. Absolute arguments
// ignore the base.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// scan reads dir once and describes the entries accepted by keep. Entries
// that vanish between the read and the stat are skipped.
func (d *Discovery) scan(dir string, keep func(fs.DirEntry) bool) ([]FileInfo, error) {
	full := dir
	if !filepath.IsAbs(dir) {
		full = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", full, err)
	}

	var out []FileInfo
	for _, e := range entries {
		if !keep(e) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fi := FileInfo{
			Path:    filepath.Join(full, e.Name()),
			Name:    e.Name(),
			ModTime: info.ModTime(),
			IsDir:   e.IsDir(),
		}
		if !fi.IsDir {
			fi.Size = info.Size()
		}
		out = append(out, fi)
	}
	return out, nil
}

// FindDataFiles lists the loadable files in dir in name order, which is
// the order edactl analyzes a directory in
func (d *Discovery) FindDataFiles(dir string) ([]FileInfo, error) {
	found, err := d.scan(dir, isDataEntry)
	if err != nil {
		return nil, err
	}
	// os.ReadDir already sorts by name
	return found, nil
}

// ListDirectories lists the subdirectories of dir, newest first with ties
// broken by name
func (d *Discovery) ListDirectories(dir string) ([]FileInfo, error) {
	dirs, err := d.scan(dir, isDirEntry)
	if err != nil {
		return nil, err
	}
	sort.Slice(dirs, func(i, j int) bool {
		if !dirs[i].ModTime.Equal(dirs[j].ModTime) {
			return dirs[i].ModTime.After(dirs[j].ModTime)
		}
		return dirs[i].Name < dirs[j].Name
	})
	return dirs, nil
}
