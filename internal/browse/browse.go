// Package browse lists directories for target selection and expands
// directory targets into supported video files.
package browse

import (
	"cmp"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mainite/videoslim/internal/encoder"
)

// Prober reads media metadata for browse entries.
type Prober interface {
	Probe(ctx context.Context, path string) (*encoder.MediaInfo, error)
}

// Entry is one file or subdirectory in a listing.
type Entry struct {
	Name      string             `json:"name"`
	Path      string             `json:"path"`
	IsDir     bool               `json:"is_dir"`
	IsVideo   bool               `json:"is_video"`
	Size      int64              `json:"size"`
	ModTime   time.Time          `json:"mod_time"`
	VideoInfo *encoder.MediaInfo `json:"video_info,omitempty"`
	FileCount int                `json:"file_count,omitempty"` // videos directly inside a directory
	TotalSize int64              `json:"total_size,omitempty"`
}

// BrowseResult is the listing of one directory.
type BrowseResult struct {
	Path       string   `json:"path"`
	Parent     string   `json:"parent,omitempty"`
	Entries    []*Entry `json:"entries"`
	VideoCount int      `json:"video_count"`
	TotalSize  int64    `json:"total_size"`
}

// probeCache memoizes probe results by path. Failed probes are not cached.
type probeCache struct {
	mu    sync.RWMutex
	infos map[string]*encoder.MediaInfo
}

func (c *probeCache) get(path string) (*encoder.MediaInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[path]
	return info, ok
}

func (c *probeCache) put(path string, info *encoder.MediaInfo) {
	c.mu.Lock()
	c.infos[path] = info
	c.mu.Unlock()
}

func (c *probeCache) drop(path string) {
	c.mu.Lock()
	delete(c.infos, path)
	c.mu.Unlock()
}

// Browser lists directories under a root, flagging supported video files.
type Browser struct {
	prober Prober
	root   string
	exts   []string
	cache  probeCache
}

// NewBrowser creates a Browser confined to root. prober may be nil, in
// which case entries carry no media metadata.
func NewBrowser(prober Prober, root string, exts []string) *Browser {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Browser{
		prober: prober,
		root:   root,
		exts:   exts,
		cache:  probeCache{infos: make(map[string]*encoder.MediaInfo)},
	}
}

// Root returns the absolute browse root.
func (b *Browser) Root() string {
	return b.root
}

// Browse lists dir. Hidden entries are omitted; directories sort before
// files, then by case-insensitive name. A dir outside the root lists the
// root instead.
func (b *Browser) Browse(ctx context.Context, dir string) (*BrowseResult, error) {
	target := filepath.Clean(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		target = abs
	}
	if !within(b.root, target) {
		target = b.root
	}

	dirEntries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}

	result := &BrowseResult{
		Path:    target,
		Entries: make([]*Entry, 0, len(dirEntries)),
	}
	if target != b.root {
		result.Parent = filepath.Dir(target)
	}

	var videos []*Entry
	for _, de := range dirEntries {
		entry, ok := b.newEntry(target, de)
		if !ok {
			continue
		}
		if entry.IsVideo {
			result.VideoCount++
			result.TotalSize += entry.Size
			videos = append(videos, entry)
		}
		result.Entries = append(result.Entries, entry)
	}

	b.probeAll(ctx, videos)

	slices.SortFunc(result.Entries, func(x, y *Entry) int {
		if x.IsDir != y.IsDir {
			if x.IsDir {
				return -1
			}
			return 1
		}
		return cmp.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})
	return result, nil
}

func (b *Browser) newEntry(dir string, de fs.DirEntry) (*Entry, bool) {
	if strings.HasPrefix(de.Name(), ".") {
		return nil, false
	}
	info, err := de.Info()
	if err != nil {
		return nil, false
	}

	entry := &Entry{
		Name:    de.Name(),
		Path:    filepath.Join(dir, de.Name()),
		IsDir:   de.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if entry.IsDir {
		entry.FileCount, entry.TotalSize = b.videosIn(entry.Path)
	} else {
		entry.IsVideo = IsVideoFile(de.Name(), b.exts)
	}
	return entry, true
}

// probeAll fills VideoInfo for every entry concurrently. Entries whose
// probe fails keep a nil VideoInfo.
func (b *Browser) probeAll(ctx context.Context, entries []*Entry) {
	if b.prober == nil {
		return
	}
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.VideoInfo = b.probe(ctx, e.Path)
		}()
	}
	wg.Wait()
}

// videosIn counts the supported files directly inside dir, without
// descending, and sums their sizes.
func (b *Browser) videosIn(dir string) (n int, size int64) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, de := range dirEntries {
		if de.IsDir() || !IsVideoFile(de.Name(), b.exts) {
			continue
		}
		n++
		if info, err := de.Info(); err == nil {
			size += info.Size()
		}
	}
	return n, size
}

func (b *Browser) probe(ctx context.Context, path string) *encoder.MediaInfo {
	if info, ok := b.cache.get(path); ok {
		return info
	}
	info, err := b.prober.Probe(ctx, path)
	if err != nil {
		return nil
	}
	b.cache.put(path, info)
	return info
}

// InvalidateCache forgets the probe result for path. The orchestrator calls
// it for every output it writes and every source it deletes.
func (b *Browser) InvalidateCache(path string) {
	b.cache.drop(path)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
