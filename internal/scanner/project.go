package scanner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/morozRed/engview/internal/merge"
	"github.com/morozRed/engview/internal/parser"
)

var ErrProjectNotFound = errors.New("project not found")

// Project is the detail view of one logical project.
type Project struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	File   FileInfo              `json:"fileInfo"`
	Record *parser.ProjectRecord `json:"record"`
	Merge  *merge.Stats          `json:"merge,omitempty"`
}

// LoadProject finds the tabular files for id and parses them. Pairing is
// scoped to one directory: the newest directory holding both a .pou and a
// .det for id is merged. Without such a pair the newest .pou is served,
// then the newest .det, the same priority the listing applies. If the merge
// is refused the superset parse is returned on its own.
func (s *Scanner) LoadProject(id string) (*Project, error) {
	if !parser.ValidID(id) {
		return nil, fmt.Errorf("%w: %q", parser.ErrInvalidID, id)
	}
	files, err := ScanDirectory(s.opts.Root, []string{".pou", ".det"})
	if err != nil {
		return nil, err
	}
	pou, det := pickProjectFiles(files, id)
	primary := pou
	if primary == nil {
		primary = det
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}

	record, err := safeParse(s.registry.ParseFile, primary.Path)
	if err != nil {
		return nil, err
	}
	project := &Project{ID: id, Name: DisplayName(primary.Name), File: *primary, Record: record}
	if pou == nil || det == nil {
		return project, nil
	}

	basic, err := safeParse(s.registry.ParseFile, det.Path)
	if err != nil {
		s.logger.Warn("basic file unreadable, serving superset only", zap.String("file", det.RelPath), zap.Error(err))
		return project, nil
	}
	merged, stats, err := s.merger.Merge(record, basic)
	if err != nil {
		s.logger.Warn("merge refused, serving superset only", zap.String("id", id), zap.Error(err))
		return project, nil
	}
	project.Record = merged
	project.Merge = &stats
	return project, nil
}

// pickProjectFiles selects the files LoadProject serves for id. files are
// newest first.
func pickProjectFiles(files []FileInfo, id string) (pou, det *FileInfo) {
	pous := make(map[string]*FileInfo)
	dets := make(map[string]*FileInfo)
	var newestPou, newestDet *FileInfo
	var dirs []string
	for i := range files {
		f := &files[i]
		if parser.NormalizeID(f.Name) != id {
			continue
		}
		dir := f.Dir()
		format, _ := parser.DetectByExtension(f.Name)
		switch format {
		case parser.FormatPou:
			if newestPou == nil {
				newestPou = f
			}
			if pous[dir] == nil {
				pous[dir] = f
			}
		case parser.FormatDet:
			if newestDet == nil {
				newestDet = f
			}
			if dets[dir] == nil {
				dets[dir] = f
			}
		default:
			continue
		}
		dirs = append(dirs, dir)
	}

	for _, dir := range dirs {
		if pous[dir] != nil && dets[dir] != nil {
			return pous[dir], dets[dir]
		}
	}
	if newestPou != nil {
		return newestPou, nil
	}
	return nil, newestDet
}

// DiagramEntry lists one pressure-volume file.
type DiagramEntry struct {
	ProjectID  string    `json:"projectId"`
	FileName   string    `json:"fileName"`
	FilePath   string    `json:"filePath"`
	FileSize   int64     `json:"fileSize"`
	ModifiedAt FileStamp `json:"modified"`
	RPM        int       `json:"rpm"`
	Cylinders  int       `json:"cylinders"`
	EngineType string    `json:"engineType"`
	Samples    int       `json:"samples"`
	Error      string    `json:"error,omitempty"`
}

// ScanDiagrams parses every .pvd file under the root for its header.
func (s *Scanner) ScanDiagrams(ctx context.Context) ([]DiagramEntry, error) {
	files, err := ScanDirectory(s.opts.Root, []string{".pvd"})
	if err != nil {
		return nil, err
	}
	p, err := s.registry.Parser(parser.FormatPvd)
	if err != nil {
		return nil, err
	}

	entries := make([]DiagramEntry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry := DiagramEntry{
				ProjectID:  parser.NormalizeID(f.Name),
				FileName:   f.Name,
				FilePath:   f.Path,
				FileSize:   f.Size,
				ModifiedAt: FileStamp{Name: f.Name, At: f.ModTime},
			}
			record, err := safeParse(p.Parse, f.Path)
			if err != nil {
				entry.EngineType = EngineTypeUnknown
				entry.Error = err.Error()
				entries[i] = entry
				return nil
			}
			entry.Cylinders = record.Metadata.NumCylinders
			entry.EngineType = record.Metadata.EngineType
			if record.Diagram != nil {
				entry.RPM = record.Diagram.RPM
				entry.Samples = len(record.Diagram.Samples)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
