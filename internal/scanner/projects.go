package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/queue"
)

// EngineTypeUnknown marks listing entries whose file failed to parse.
const EngineTypeUnknown = "UNKNOWN"

// ProjectEntry is one row of the project listing.
type ProjectEntry struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	FileName          string        `json:"fileName"`
	FilePath          string        `json:"filePath"`
	FileSize          int64         `json:"fileSize"`
	ModifiedAt        time.Time     `json:"modifiedAt"`
	CreatedAt         time.Time     `json:"createdAt"`
	Format            parser.Format `json:"format"`
	NumCylinders      int           `json:"numCylinders"`
	EngineType        string        `json:"engineType"`
	CalculationsCount int           `json:"calculationsCount"`
	Error             string        `json:"error,omitempty"`
}

var formatPriority = map[parser.Format]int{
	parser.FormatMerged: 3,
	parser.FormatPou:    2,
	parser.FormatDet:    1,
}

type parsed struct {
	file   FileInfo
	record *parser.ProjectRecord
	entry  ProjectEntry
}

// ScanProjects lists every project under the root. Narrative files are
// checked for stale metadata and refreshed (queued at low priority when a
// queue is wired). Tabular files are parsed in parallel; a file that fails
// to parse yields a placeholder entry carrying the error. A .pou/.det pair
// sharing an id and a directory is merged, and the listing keeps one entry
// per id: pou-merged over pou over det, first seen on a tie.
func (s *Scanner) ScanProjects(ctx context.Context) ([]ProjectEntry, error) {
	files, err := ScanDirectory(s.opts.Root, s.opts.Extensions)
	if err != nil {
		return nil, err
	}

	files = s.filterBySize(files)

	var narrative, tabular []FileInfo
	for _, f := range files {
		format, ok := parser.DetectByExtension(f.Name)
		switch {
		case !ok:
			continue
		case format == parser.FormatPrt:
			narrative = append(narrative, f)
		case format.Tabular():
			tabular = append(tabular, f)
		}
	}

	s.refreshNarrative(ctx, narrative)

	siblings := make(map[string]FileInfo, len(narrative))
	for _, f := range narrative {
		siblings[siblingKey(f)] = f
	}

	results := make([]parsed, len(tabular))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i, f := range tabular {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.parseTabular(f, siblings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]ProjectEntry, 0, len(results))
	entries = append(entries, s.mergePairs(results)...)
	for _, r := range results {
		entries = append(entries, r.entry)
	}

	deduped := Deduplicate(entries, s.logger)
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].ModifiedAt.After(deduped[j].ModifiedAt)
	})
	s.logger.Info("scan complete",
		zap.String("root", s.opts.Root),
		zap.Int("files", len(files)),
		zap.Int("projects", len(deduped)))
	return deduped, nil
}

func (s *Scanner) filterBySize(files []FileInfo) []FileInfo {
	if s.opts.MaxFileSize <= 0 {
		return files
	}
	kept := files[:0:0]
	for _, f := range files {
		if f.Size > s.opts.MaxFileSize {
			s.logger.Warn("skipping oversized file",
				zap.String("file", f.RelPath),
				zap.String("size", FormatFileSize(f.Size)),
				zap.String("limit", FormatFileSize(s.opts.MaxFileSize)))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func (s *Scanner) refreshNarrative(ctx context.Context, files []FileInfo) {
	scheduled := 0
	for _, f := range files {
		ok, err := s.Refresh(ctx, f, queue.PriorityLow)
		if err != nil {
			s.logger.Error("narrative extraction failed", zap.String("file", f.RelPath), zap.Error(err))
			continue
		}
		if ok {
			scheduled++
		}
	}
	if len(files) > 0 {
		s.logger.Info("narrative files checked",
			zap.Int("files", len(files)),
			zap.Int("stale", scheduled),
			zap.Bool("queued", s.queue != nil))
	}
}

func (s *Scanner) parseTabular(f FileInfo, siblings map[string]FileInfo) parsed {
	format, _ := parser.DetectByExtension(f.Name)
	entry := ProjectEntry{
		ID:       parser.NormalizeID(f.Name),
		Name:     DisplayName(f.Name),
		FileName: f.Name,
		FilePath: f.Path,
		FileSize: f.Size,
		Format:   format,
	}
	entry.CreatedAt, entry.ModifiedAt = projectDates(f, siblings)

	record, err := safeParse(s.registry.ParseFile, f.Path)
	if err != nil {
		s.logger.Warn("skipping unparsable project file", zap.String("file", f.RelPath), zap.Error(err))
		entry.EngineType = EngineTypeUnknown
		entry.Error = err.Error()
		return parsed{file: f, entry: entry}
	}

	entry.Format = record.Format
	entry.NumCylinders = record.Metadata.NumCylinders
	entry.EngineType = record.Metadata.EngineType
	entry.CalculationsCount = len(record.Calculations)
	return parsed{file: f, record: record, entry: entry}
}

// safeParse runs parse and reports a panic as an error.
func safeParse(parse func(string) (*parser.ProjectRecord, error), path string) (record *parser.ProjectRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record, err = nil, fmt.Errorf("panic while parsing %s: %v", filepath.Base(path), r)
		}
	}()
	return parse(path)
}

// projectDates prefers the narrative sibling's timestamps. A creation time
// after the modification time means the file was copied, so the
// modification time is used for both.
func projectDates(f FileInfo, siblings map[string]FileInfo) (created, modified time.Time) {
	source := f
	if prt, ok := siblings[siblingKey(f)]; ok {
		source = prt
	}
	created, modified = source.Created, source.ModTime
	if created.After(modified) {
		created = modified
	}
	return created, modified
}

func siblingKey(f FileInfo) string {
	return filepath.Join(f.Dir(), parser.NormalizeID(f.Name))
}

// mergePairs produces a pou-merged entry for every compatible pou/det pair
// that share an id and directory.
func (s *Scanner) mergePairs(results []parsed) []ProjectEntry {
	pous := make(map[string]parsed)
	dets := make(map[string]parsed)
	var order []string
	for _, r := range results {
		if r.record == nil {
			continue
		}
		key := siblingKey(r.file)
		switch r.record.Format {
		case parser.FormatPou:
			if _, seen := pous[key]; !seen {
				pous[key] = r
				order = append(order, key)
			}
		case parser.FormatDet:
			if _, seen := dets[key]; !seen {
				dets[key] = r
			}
		}
	}

	var merged []ProjectEntry
	for _, key := range order {
		pou, det := pous[key], dets[key]
		if det.record == nil {
			continue
		}
		record, _, err := s.merger.Merge(pou.record, det.record)
		if err != nil {
			s.logger.Warn("cannot merge project files",
				zap.String("pou", pou.file.RelPath),
				zap.String("det", det.file.RelPath),
				zap.Error(err))
			continue
		}
		entry := pou.entry
		entry.Format = record.Format
		entry.CalculationsCount = len(record.Calculations)
		merged = append(merged, entry)
	}
	return merged
}

// Deduplicate keeps one entry per id using the format priority. Entries of
// equal priority keep the first one seen.
func Deduplicate(entries []ProjectEntry, logger *zap.Logger) []ProjectEntry {
	if logger == nil {
		logger = zap.NewNop()
	}
	index := make(map[string]int, len(entries))
	out := make([]ProjectEntry, 0, len(entries))
	for _, e := range entries {
		i, seen := index[e.ID]
		if !seen {
			index[e.ID] = len(out)
			out = append(out, e)
			continue
		}
		existing := out[i]
		if formatPriority[e.Format] > formatPriority[existing.Format] {
			logger.Debug("replacing duplicate project",
				zap.String("id", e.ID),
				zap.Stringer("kept", e.Format),
				zap.Stringer("dropped", existing.Format))
			out[i] = e
			continue
		}
		logger.Debug("skipping duplicate project",
			zap.String("id", e.ID),
			zap.Stringer("kept", existing.Format),
			zap.Stringer("dropped", e.Format))
	}
	return out
}

// DisplayName strips a known extension from a file name.
func DisplayName(fileName string) string {
	base := filepath.Base(fileName)
	if _, ok := parser.DetectByExtension(base); ok {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}
