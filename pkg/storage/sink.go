package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/models"
)

// Sink appends normalized records to a durable per-source log
type Sink interface {
	// Append writes records not already present. Either every new record
	// is durably written or none is visible.
	Append(ctx context.Context, sourceID string, records []*models.NormalizedRecord) (AppendResult, error)
}

// AppendResult counts what one Append did
type AppendResult struct {
	Written    int
	Duplicates int
}

// logFile is the subset of *os.File the sink writes through
type logFile interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Sync() error
	Close() error
}

// sourceLog is one open corpus file and the issue keys it holds
type sourceLog struct {
	mu   sync.Mutex
	path string
	file logFile
	size int64
	seen mapset.Set[string]
}

// Manager is a Sink writing <dir>/<source>_corpus.jsonl files
type Manager struct {
	outputDir string
	logger    logger.Logger
	openFile  func(path string) (logFile, error)

	mu   sync.Mutex
	logs map[string]*sourceLog
}

// NewManager creates the output directory if needed
func NewManager(outputDir string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{
		outputDir: outputDir,
		logger:    log,
		openFile: func(path string) (logFile, error) {
			return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		},
		logs: make(map[string]*sourceLog),
	}, nil
}

// CorpusPath returns the log file of a source
func (m *Manager) CorpusPath(sourceID string) string {
	return filepath.Join(m.outputDir, sourceID+"_corpus.jsonl")
}

// Append implements Sink
func (m *Manager) Append(ctx context.Context, sourceID string, records []*models.NormalizedRecord) (AppendResult, error) {
	var res AppendResult
	if err := ctx.Err(); err != nil {
		return res, err
	}

	sl, err := m.open(sourceID)
	if err != nil {
		return res, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	var buf bytes.Buffer
	batch := mapset.NewThreadUnsafeSet[string]()
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if sl.seen.Contains(rec.IssueKey) || batch.Contains(rec.IssueKey) {
			res.Duplicates++
			continue
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return AppendResult{}, errs.Wrap(errs.ErrorTypePersistence, err, "encode record "+rec.IssueKey)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		batch.Add(rec.IssueKey)
	}

	if buf.Len() == 0 {
		return res, nil
	}

	if err := sl.write(buf.Bytes()); err != nil {
		return AppendResult{}, errs.Wrap(errs.ErrorTypePersistence, err, "append to "+sl.path)
	}

	sl.seen.Append(batch.ToSlice()...)
	res.Written = batch.Cardinality()

	m.logger.DebugWithFields("Records appended", map[string]interface{}{
		"source":     sourceID,
		"written":    res.Written,
		"duplicates": res.Duplicates,
		"bytes":      buf.Len(),
	})
	return res, nil
}

// Count returns the number of records stored for a source
func (m *Manager) Count(sourceID string) (int, error) {
	if _, err := os.Stat(m.CorpusPath(sourceID)); os.IsNotExist(err) {
		return 0, nil
	}
	sl, err := m.open(sourceID)
	if err != nil {
		return 0, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.seen.Cardinality(), nil
}

// Close closes every open log
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errList []error
	for id, sl := range m.logs {
		sl.mu.Lock()
		if err := sl.file.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close %s: %w", sl.path, err))
		}
		sl.mu.Unlock()
		delete(m.logs, id)
	}
	return errors.Join(errList...)
}

// open returns the cached log of a source, opening and recovering it on
// first use
func (m *Manager) open(sourceID string) (*sourceLog, error) {
	if err := models.CheckSourceID(sourceID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sl, ok := m.logs[sourceID]; ok {
		return sl, nil
	}

	path := m.CorpusPath(sourceID)
	file, err := m.openFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypePersistence, err, "open corpus log")
	}

	sl := &sourceLog{
		path: path,
		file: file,
		seen: mapset.NewThreadUnsafeSet[string](),
	}
	if err := sl.recover(m.logger); err != nil {
		file.Close()
		return nil, errs.Wrap(errs.ErrorTypePersistence, err, "recover corpus log")
	}

	m.logs[sourceID] = sl
	m.logger.DebugWithFields("Corpus log opened", map[string]interface{}{
		"source":  sourceID,
		"path":    path,
		"records": sl.seen.Cardinality(),
	})
	return sl, nil
}

// recover loads the issue keys of every complete line and cuts off a torn
// final line left by a crash mid-write
func (sl *sourceLog) recover(log logger.Logger) error {
	reader := bufio.NewReader(io.NewSectionReader(sl.file, 0, 1<<62))

	var offset int64
	lineNo := 0
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			lineNo++
			offset += int64(len(line))

			var probe struct {
				IssueKey string `json:"issue_key"`
			}
			if jerr := json.Unmarshal(line, &probe); jerr != nil || probe.IssueKey == "" {
				log.WarnWithFields("Skipping unreadable corpus line", map[string]interface{}{
					"path": sl.path,
					"line": lineNo,
				})
			} else {
				sl.seen.Add(probe.IssueKey)
			}
		}
		if err == io.EOF {
			if len(line) > 0 {
				log.WarnWithFields("Truncating torn trailing line", map[string]interface{}{
					"path":  sl.path,
					"bytes": len(line),
				})
				if terr := sl.file.Truncate(offset); terr != nil {
					return terr
				}
				if serr := sl.file.Sync(); serr != nil {
					return serr
				}
			}
			break
		}
		if err != nil {
			return err
		}
	}

	sl.size = offset
	return nil
}

// write appends data at the end of the log and syncs it. On failure the
// file is cut back to its previous size.
func (sl *sourceLog) write(data []byte) error {
	n, err := sl.file.WriteAt(data, sl.size)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = sl.file.Sync()
	}
	if err != nil {
		if terr := sl.file.Truncate(sl.size); terr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", terr))
		}
		_ = sl.file.Sync()
		return err
	}

	sl.size += int64(len(data))
	return nil
}
