// Package scanner discovers engine files under the data directory, keeps
// narrative-derived metadata fresh and builds the project listing.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/morozRed/engview/internal/ignore"
)

// ErrDirectoryNotFound is returned when the scan root does not exist.
var ErrDirectoryNotFound = errors.New("data directory not found")

// FileInfo describes one discovered file.
type FileInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	RelPath   string    `json:"relPath"`
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modifiedAt"`
	Created   time.Time `json:"createdAt"`
}

// Dir is the directory holding the file.
func (f FileInfo) Dir() string {
	return filepath.Dir(f.Path)
}

// StatFile builds a FileInfo for a single path.
func StatFile(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return fileInfoFrom(path, path, info), nil
}

func fileInfoFrom(path, relPath string, info fs.FileInfo) FileInfo {
	return FileInfo{
		Name:      info.Name(),
		Path:      path,
		RelPath:   filepath.ToSlash(relPath),
		Extension: filepath.Ext(info.Name()),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Created:   birthTime(info),
	}
}

// ScanDirectory walks root recursively and returns every file whose
// extension is in extensions (case-insensitive; empty means all), newest
// modification first. Rules from root/.engviewignore are honoured.
func ScanDirectory(root string, extensions []string) ([]FileInfo, error) {
	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	rules, err := ignore.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ignore.FileName, err)
	}
	matcher := ignore.NewMatcher(rules)
	allowed := extensionSet(extensions)

	files := make([]FileInfo, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if path != root && matcher.ShouldIgnore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !allowed.has(filepath.Ext(d.Name())) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileInfoFrom(path, rel, fi))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].RelPath < files[j].RelPath
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

type extSet map[string]struct{}

func extensionSet(extensions []string) extSet {
	set := make(extSet, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

func (s extSet) has(ext string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[strings.ToLower(ext)]
	return ok
}

// DirStats summarises the files a scan would consider.
type DirStats struct {
	Path               string     `json:"path"`
	TotalFiles         int        `json:"totalFiles"`
	TotalSize          int64      `json:"totalSize"`
	TotalSizeFormatted string     `json:"totalSizeFormatted"`
	Oldest             *FileStamp `json:"oldestFile,omitempty"`
	Newest             *FileStamp `json:"newestFile,omitempty"`
}

type FileStamp struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// DirectoryStats reports count and size of matching files, the earliest
// created one and the most recently modified one.
func DirectoryStats(root string, extensions []string) (DirStats, error) {
	files, err := ScanDirectory(root, extensions)
	if err != nil {
		return DirStats{}, fmt.Errorf("failed to collect directory stats: %w", err)
	}

	stats := DirStats{Path: root, TotalFiles: len(files)}
	for i, f := range files {
		stats.TotalSize += f.Size
		if i == 0 {
			stats.Oldest = &FileStamp{Name: f.Name, At: f.Created}
			stats.Newest = &FileStamp{Name: f.Name, At: f.ModTime}
			continue
		}
		if f.Created.Before(stats.Oldest.At) {
			stats.Oldest = &FileStamp{Name: f.Name, At: f.Created}
		}
		if f.ModTime.After(stats.Newest.At) {
			stats.Newest = &FileStamp{Name: f.Name, At: f.ModTime}
		}
	}
	stats.TotalSizeFormatted = FormatFileSize(stats.TotalSize)
	return stats, nil
}

// FormatFileSize renders bytes in binary units, e.g. "1.5 KiB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}
