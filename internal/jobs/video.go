package jobs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mainite/videoslim/internal/browse"
)

// OutputSuffix is appended to the base name of every compressed file.
const OutputSuffix = "_x264"

// VideoFile is a validated input file.
type VideoFile struct {
	path string
	name string // base name without extension
	ext  string // lower-cased, with dot
}

// NewVideoFile validates path: it must name an existing regular file whose
// extension is one of exts.
func NewVideoFile(path string, exts []string) (*VideoFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, unsupportedFileError(path, err.Error())
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, unsupportedFileError(abs, "not found")
	}
	if !info.Mode().IsRegular() {
		return nil, unsupportedFileError(abs, "not a regular file")
	}
	if !browse.IsVideoFile(abs, exts) {
		return nil, unsupportedFileError(abs, "unsupported extension")
	}

	base := filepath.Base(abs)
	ext := filepath.Ext(base)
	return &VideoFile{
		path: abs,
		name: strings.TrimSuffix(base, ext),
		ext:  strings.ToLower(ext),
	}, nil
}

// Path returns the absolute input path.
func (v *VideoFile) Path() string { return v.path }

// FullName returns the base name with extension.
func (v *VideoFile) FullName() string { return filepath.Base(v.path) }

// Name returns the base name without extension.
func (v *VideoFile) Name() string { return v.name }

// Ext returns the lower-cased extension, including the dot.
func (v *VideoFile) Ext() string { return v.ext }

// OutputPath returns <dir>/<name>_x264<ext>: the output sits next to the
// input, not in the working directory, whatever directory the process runs
// from.
func (v *VideoFile) OutputPath() string {
	return filepath.Join(filepath.Dir(v.path), v.name+OutputSuffix+v.ext)
}
