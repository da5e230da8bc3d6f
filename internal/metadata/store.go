// Package metadata persists one JSON document per project and serializes
// writes per project id.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/fileutil"
	"github.com/morozRed/engview/internal/parser"
)

// DefaultDir is where documents live relative to the working directory.
const DefaultDir = ".metadata"

var ErrInvalidID = parser.ErrInvalidID

// Store owns the metadata directory. Every read-modify-write for an id runs
// under that id's lock; different ids never block each other.
type Store struct {
	dir    string
	locks  *lockTable
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates dir if needed. Failing to create it is fatal for callers.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		locks:  newLockTable(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Path returns the document file for id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get returns the document for id, or nil when none exists. Unversioned
// documents are migrated and written back before returning.
func (s *Store) Get(id string) (*Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()
	return s.load(id)
}

// Has reports whether a document file exists for id.
func (s *Store) Has(id string) bool {
	if validateID(id) != nil {
		return false
	}
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// All loads every document in the directory. Unreadable files are logged
// and skipped.
func (s *Store) All() (map[string]*Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Document{}, nil
		}
		return nil, err
	}

	docs := make(map[string]*Document, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		doc, err := s.Get(id)
		if err != nil {
			s.logger.Warn("skipping unreadable metadata document", zap.String("id", id), zap.Error(err))
			continue
		}
		if doc != nil {
			docs[id] = doc
		}
	}
	return docs, nil
}

// Save writes doc as the full document for id. A nil Auto keeps the
// existing auto section, and Created is always taken from any existing
// document.
func (s *Store) Save(id string, doc Document) (*Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	existing, err := s.load(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc.Version = CurrentVersion
	doc.ID = id
	doc.Manual = doc.Manual.Normalized()
	doc.Created = now
	if existing != nil {
		doc.Created = existing.Created
		if doc.Auto == nil {
			doc.Auto = existing.Auto
		}
	}
	doc.Modified = now

	if err := s.write(id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateAuto replaces only the auto section.
func (s *Store) UpdateAuto(id string, auto AutoMetadata) (*Document, error) {
	doc, _, err := s.mutate(id, func(doc *Document) {
		doc.Auto = &auto
	})
	return doc, err
}

// UpdateManual replaces only the manual section, applying defaults. A
// non-nil displayName replaces the display name too.
func (s *Store) UpdateManual(id string, manual ManualMetadata, displayName *string) (*Document, error) {
	doc, _, err := s.UpsertManual(id, manual, displayName)
	return doc, err
}

// UpsertManual is UpdateManual that also reports whether the document was
// created by this call. The check and the write happen under id's lock.
func (s *Store) UpsertManual(id string, manual ManualMetadata, displayName *string) (*Document, bool, error) {
	return s.mutate(id, func(doc *Document) {
		doc.Manual = manual.Normalized()
		if displayName != nil {
			doc.DisplayName = strings.TrimSpace(*displayName)
		}
	})
}

// Delete removes the document and reports whether one existed.
func (s *Store) Delete(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if err := os.Remove(s.Path(id)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete metadata for %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) mutate(id string, apply func(doc *Document)) (doc *Document, created bool, err error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	doc, err = s.load(id)
	if err != nil {
		return nil, false, err
	}
	now := s.now()
	if doc == nil {
		created = true
		doc = &Document{
			Version: CurrentVersion,
			ID:      id,
			Manual:  DefaultManual(),
			Created: now,
		}
	}

	apply(doc)
	doc.Modified = now

	if err := s.write(id, doc); err != nil {
		return nil, false, err
	}
	return doc, created, nil
}

// load reads id's document; the caller holds the lock.
func (s *Store) load(id string) (*Document, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata for %s: %w", id, err)
	}

	doc, migrated, err := decodeDocument(id, data, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
	}
	if migrated {
		s.logger.Info("migrated legacy metadata document", zap.String("id", id))
		if err := s.write(id, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *Store) write(id string, doc *Document) error {
	if err := fileutil.WriteJSON(s.Path(id), doc); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", id, err)
	}
	return nil
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
