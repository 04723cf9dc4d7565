package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/topika/internal/content"
)

// loadArray reads a JSON array file under the no-data-loss contract:
// a missing or empty file is (re)created as []; a corrupt file is
// quarantined to a timestamped .bak sibling and reinitialized empty; and
// entries without a non-empty type are dropped with the file rewritten to
// contain only valid entries. A parse failure never reaches the caller.
func loadArray(path string, now func() time.Time) ([]content.Record, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) || (err == nil && len(strings.TrimSpace(string(data))) == 0) {
		if werr := writeArray(path, nil); werr != nil {
			return nil, werr
		}
		return []content.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	records, dropped, err := content.UnmarshalRecords(data)
	if err != nil {
		quarantine(path, data, now())
		if werr := writeArray(path, nil); werr != nil {
			return nil, werr
		}
		return []content.Record{}, nil
	}

	valid := records[:0]
	for _, r := range records {
		if r.Type() == "" {
			slog.Warn("dropping entry without type", "file", path, "id", r.ID())
			dropped++
			continue
		}
		valid = append(valid, r)
	}

	if dropped > 0 {
		slog.Warn("invalid entries removed at load", "file", path, "dropped", dropped)
		if err := writeArray(path, valid); err != nil {
			return nil, err
		}
	}

	slog.Info("data file loaded", "file", path, "items", len(valid))
	return valid, nil
}

// quarantine preserves the corrupt bytes in a timestamped sibling so
// nothing is lost when the file is reinitialized.
func quarantine(path string, data []byte, now time.Time) {
	bak := fmt.Sprintf("%s.bak.%s", path, now.Format("20060102_150405"))
	if err := os.WriteFile(bak, data, 0o644); err != nil {
		slog.Error("quarantine of corrupt file failed", "file", path, "error", err)
		return
	}
	slog.Warn("corrupt data file quarantined", "file", path, "backup", bak)
}

// writeArray does a full-file rewrite of the array.
func writeArray(path string, records []content.Record) error {
	data, err := content.MarshalRecords(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
