package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/models"
)

// RejectLog records rejected items in <dir>/<source>_rejects.jsonl. It is
// a diagnostic side channel; entries may repeat across re-runs.
type RejectLog struct {
	dir string
	mu  sync.Mutex
}

// NewRejectLog creates the directory if needed
func NewRejectLog(dir string) (*RejectLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create rejects directory: %w", err)
	}
	return &RejectLog{dir: dir}, nil
}

// Path returns the rejects file of a source
func (r *RejectLog) Path(sourceID string) string {
	return filepath.Join(r.dir, sourceID+"_rejects.jsonl")
}

// Record appends rejections for a source
func (r *RejectLog) Record(ctx context.Context, sourceID string, rejections []*models.Rejection) error {
	if len(rejections) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := models.CheckSourceID(sourceID); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rej := range rejections {
		if err := enc.Encode(rej); err != nil {
			return errs.Wrap(errs.ErrorTypePersistence, err, "encode rejection")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.Path(sourceID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.ErrorTypePersistence, err, "open rejects log")
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return errs.Wrap(errs.ErrorTypePersistence, err, "append rejections")
	}
	return nil
}
