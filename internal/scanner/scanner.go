package scanner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/merge"
	"github.com/morozRed/engview/internal/metadata"
	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/queue"
)

// DefaultExtensions are scanned when Options.Extensions is empty.
var DefaultExtensions = []string{".det", ".pou", ".prt"}

const defaultParallelism = 4

type Options struct {
	Root        string
	Extensions  []string
	MaxFileSize int64 // 0 disables the limit
	Parallelism int   // tabular files parsed at once
}

// Scanner ties the parser registry, the metadata store and an optional
// extraction queue to one data directory.
type Scanner struct {
	opts      Options
	registry  *parser.Registry
	store     *metadata.Store
	queue     *queue.Queue
	merger    *merge.Merger
	extractor *Extractor
	logger    *zap.Logger
}

// New builds a scanner. q may be nil, in which case stale narrative files
// are extracted synchronously during ScanProjects.
func New(opts Options, registry *parser.Registry, store *metadata.Store, q *queue.Queue, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	return &Scanner{
		opts:      opts,
		registry:  registry,
		store:     store,
		queue:     q,
		merger:    merge.New(logger),
		extractor: NewExtractor(registry, store, logger),
		logger:    logger.Named("scanner"),
	}
}

func (s *Scanner) Root() string {
	return s.opts.Root
}

func (s *Scanner) Extensions() []string {
	return s.opts.Extensions
}

func (s *Scanner) Extractor() *Extractor {
	return s.extractor
}

// ShouldReExtract reports whether the cached document for id is missing,
// lacks an auto section, or is older than the file at path. A file that
// cannot be stat'ed counts as stale so the extraction surfaces the error.
func (s *Scanner) ShouldReExtract(path, id string) bool {
	doc, err := s.store.Get(id)
	if err != nil {
		s.logger.Warn("metadata unreadable, re-extracting", zap.String("id", id), zap.Error(err))
		return true
	}
	if doc == nil || doc.Auto == nil {
		return true
	}
	info, err := StatFile(path)
	if err != nil {
		s.logger.Warn("cannot stat narrative file", zap.String("path", path), zap.Error(err))
		return true
	}
	return info.ModTime.After(doc.Modified)
}

// Refresh runs the cache check for a narrative file and, when stale, either
// enqueues it at priority or extracts it in place when no queue is wired.
// It reports whether work was scheduled or done.
func (s *Scanner) Refresh(ctx context.Context, file FileInfo, priority queue.Priority) (bool, error) {
	id := parser.NormalizeID(file.Name)
	if id == "" {
		s.logger.Warn("skipping narrative file without a usable id", zap.String("file", file.RelPath))
		return false, nil
	}
	if !s.ShouldReExtract(file.Path, id) {
		s.logger.Debug("metadata up to date", zap.String("id", id))
		return false, nil
	}

	desc := file.Descriptor()
	if s.queue != nil {
		return s.queue.Enqueue(desc, s.extractor.Extract, priority), nil
	}
	if err := s.extractor.Extract(ctx, desc); err != nil {
		return false, err
	}
	return true, nil
}

// Descriptor converts the file into a queue task descriptor.
func (f FileInfo) Descriptor() queue.FileDescriptor {
	return queue.FileDescriptor{Name: f.Name, Path: f.Path, Size: f.Size, ModTime: f.ModTime}
}

// Extractor parses a narrative file and stores the result as the auto
// section of the project's metadata.
type Extractor struct {
	registry *parser.Registry
	store    *metadata.Store
	logger   *zap.Logger
}

func NewExtractor(registry *parser.Registry, store *metadata.Store, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{registry: registry, store: store, logger: logger.Named("extract")}
}

// Extract satisfies queue.ExtractFunc.
func (e *Extractor) Extract(ctx context.Context, file queue.FileDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := parser.NormalizeID(file.Name)
	if id == "" {
		return fmt.Errorf("%w: %s yields an empty project id", parser.ErrInvalidID, file.Name)
	}
	p, err := e.registry.Parser(parser.FormatPrt)
	if err != nil {
		return err
	}
	record, err := safeParse(p.Parse, file.Path)
	if err != nil {
		return err
	}
	if record.Specs == nil {
		return fmt.Errorf("%s: no engine specs extracted", file.Name)
	}

	doc, err := e.store.UpdateAuto(id, metadata.AutoFromSpecs(record.Specs))
	if err != nil {
		return fmt.Errorf("failed to store metadata for %s: %w", id, err)
	}
	e.logger.Info("extracted engine specs",
		zap.String("id", id),
		zap.String("file", file.Name),
		zap.Int("cylinders", doc.Auto.Cylinders),
		zap.String("type", doc.Auto.Type))
	return nil
}
