package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/models"
)

// ErrNonMonotonic is returned when an advance would not move the cursor
// forward
var ErrNonMonotonic = errors.New("checkpoint cursor must strictly increase")

const (
	fileSuffix = ".checkpoint.json"
	version    = 1
)

// Checkpoint is the persisted progress of one source
type Checkpoint struct {
	SourceID  string    `json:"source_id"`
	Cursor    int       `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Store persists per-source cursors
type Store interface {
	// Load returns the stored cursor, or 0 when none exists
	Load(ctx context.Context, sourceID string) (int, error)
	// Advance durably records cursor, which must exceed the stored one
	Advance(ctx context.Context, sourceID string, cursor int) error
	// Get returns the stored checkpoint, or nil when none exists
	Get(ctx context.Context, sourceID string) (*Checkpoint, error)
	// Reset removes the stored checkpoint
	Reset(ctx context.Context, sourceID string) error
	// List returns all stored checkpoints ordered by source
	List(ctx context.Context) ([]Checkpoint, error)
}

// FileStore keeps one JSON file per source in a directory
type FileStore struct {
	dir    string
	logger logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	cursors map[string]int
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{
		dir:     dir,
		logger:  log,
		now:     time.Now,
		cursors: make(map[string]int),
	}, nil
}

// Path returns the checkpoint file of a source
func (s *FileStore) Path(sourceID string) string {
	return filepath.Join(s.dir, sourceID+fileSuffix)
}

// Load reads the cursor of sourceID. A missing file means the source has
// never been harvested; an unreadable one is logged and treated the same.
func (s *FileStore) Load(ctx context.Context, sourceID string) (int, error) {
	cp, err := s.Get(ctx, sourceID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cp == nil {
		s.cursors[sourceID] = 0
		return 0, nil
	}
	s.cursors[sourceID] = cp.Cursor
	return cp.Cursor, nil
}

// Get reads the checkpoint file of sourceID
func (s *FileStore) Get(ctx context.Context, sourceID string) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := models.CheckSourceID(sourceID); err != nil {
		return nil, err
	}

	path := s.Path(sourceID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil || cp.Cursor < 0 || cp.SourceID != sourceID {
		s.logger.WarnWithFields("Ignoring corrupt checkpoint, starting from cursor 0", map[string]interface{}{
			"source": sourceID,
			"path":   path,
		})
		return nil, nil
	}
	return &cp, nil
}

// Advance records cursor for sourceID after checking it moves forward
func (s *FileStore) Advance(ctx context.Context, sourceID string, cursor int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := models.CheckSourceID(sourceID); err != nil {
		return err
	}

	current, known := s.cached(sourceID)
	if !known {
		var err error
		if current, err = s.Load(ctx, sourceID); err != nil {
			return err
		}
	}
	if cursor <= current {
		return fmt.Errorf("%w: %s at %d, got %d", ErrNonMonotonic, sourceID, current, cursor)
	}

	cp := &Checkpoint{
		SourceID:  sourceID,
		Cursor:    cursor,
		UpdatedAt: s.now().UTC(),
		Version:   version,
	}
	if err := s.save(cp); err != nil {
		return err
	}

	s.mu.Lock()
	s.cursors[sourceID] = cursor
	s.mu.Unlock()

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"source": sourceID,
		"cursor": cursor,
	})
	return nil
}

// Reset deletes the checkpoint so the next harvest starts at cursor 0
func (s *FileStore) Reset(ctx context.Context, sourceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := models.CheckSourceID(sourceID); err != nil {
		return err
	}

	if err := os.Remove(s.Path(sourceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if err := syncDir(s.dir); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cursors, sourceID)
	s.mu.Unlock()

	s.logger.InfoWithFields("Checkpoint reset", map[string]interface{}{"source": sourceID})
	return nil
}

// List returns every readable checkpoint in the directory
func (s *FileStore) List(ctx context.Context) ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var out []Checkpoint
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		cp, err := s.Get(ctx, strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		if cp != nil {
			out = append(out, *cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (s *FileStore) cached(sourceID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[sourceID]
	return c, ok
}

// save writes the checkpoint to a temp file, syncs it and renames it over
// the old one, then syncs the directory so the rename itself is durable.
func (s *FileStore) save(cp *Checkpoint) error {
	path := s.Path(cp.SourceID)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return syncDir(s.dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync checkpoint directory: %w", err)
	}
	return nil
}
