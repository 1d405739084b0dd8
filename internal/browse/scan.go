package browse

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mainite/videoslim/internal/logger"
)

// IsVideoFile reports whether name has one of the supported extensions.
// Matching is case-insensitive.
func IsVideoFile(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	return slices.ContainsFunc(exts, func(e string) bool {
		return strings.ToLower(e) == ext
	})
}

// Scan returns the supported video files under root: the files of each
// directory in name order, followed by each subdirectory in name order.
// Symlinks are followed; a directory reached twice through links is scanned
// once. Unreadable directories are logged and skipped.
func Scan(root string, exts []string) []string {
	var files []string
	visited := make(map[string]bool)
	scanDir(root, exts, visited, &files)
	return files
}

func scanDir(dir string, exts []string, visited map[string]bool, files *[]string) {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if visited[real] {
			logger.Debug("Skipping directory already scanned", "path", dir, "target", real)
			return
		}
		visited[real] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("Failed to read directory", "path", dir, "error", err)
		return
	}

	var subdirs []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				logger.Warn("Skipping broken symlink", "path", path, "error", err)
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			subdirs = append(subdirs, path)
		case mode.IsRegular() && IsVideoFile(e.Name(), exts):
			*files = append(*files, path)
		}
	}

	for _, sub := range subdirs {
		scanDir(sub, exts, visited, files)
	}
}
