// Package backup writes timestamped snapshots of the active content array
// and prunes old automatic snapshots down to a retention ceiling. Manual
// snapshots are exempt from pruning. Snapshots are immutable after
// creation; corruption in a snapshot degrades its listing entry, never the
// listing itself.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/topika/internal/content"
)

const (
	autoPrefix   = "auto_backup_"
	manualPrefix = "manual_backup_"

	// UnparseableCount is the sentinel item count reported for a snapshot
	// whose contents no longer parse.
	UnparseableCount = -1
)

// ErrInvalidName is returned for snapshot names that escape the backup
// directory.
var ErrInvalidName = errors.New("invalid backup file name")

// Service owns the backup directory and retention configuration. It holds
// no content state; callers pass the array to snapshot.
type Service struct {
	dir      string
	max      int
	uploader Uploader
	now      func() time.Time
}

// Info describes one snapshot file, newest first in listings.
type Info struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	SizeKB    float64   `json:"size_kb"`
	ItemCount int       `json:"item_count"`
	Kind      string    `json:"kind"` // "auto" or "manual"
}

// NewService creates the backup directory if needed. A nil uploader keeps
// the service local-only.
func NewService(dir string, maxBackups int, uploader Uploader) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	if uploader == nil {
		uploader = &NoopUploader{}
	}
	return &Service{
		dir:      dir,
		max:      maxBackups,
		uploader: uploader,
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source. Test seam.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Auto writes today's automatic snapshot unless one already exists, then
// prunes old automatic snapshots. Returns the written path, or "" when
// today's snapshot was already taken.
func (s *Service) Auto(records []content.Record) (string, error) {
	today := s.now().Format("20060102")

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("scan backup directory: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), autoPrefix+today) {
			return "", nil
		}
	}

	name := fmt.Sprintf("%s%s_%s.json", autoPrefix, today, s.now().Format("150405"))
	path, err := s.write(name, records)
	if err != nil {
		return "", err
	}
	slog.Info("automatic backup created", "file", name, "items", len(records))

	if removed, err := s.prune(); err != nil {
		slog.Warn("backup pruning failed", "error", err)
	} else if removed > 0 {
		slog.Info("old automatic backups pruned", "removed", removed)
	}

	return path, nil
}

// Manual always writes a new snapshot, regardless of how recent the last
// one was. Used before destructive operations and for export.
func (s *Service) Manual(records []content.Record) (string, error) {
	name := fmt.Sprintf("%s%s.json", manualPrefix, s.now().Format("20060102_150405"))
	path, err := s.write(name, records)
	if err != nil {
		return "", err
	}
	slog.Info("manual backup created", "file", name, "items", len(records))
	return path, nil
}

// write persists the snapshot file and hands it to the uploader. Upload
// failures are logged and never fail the snapshot.
func (s *Service) write(name string, records []content.Record) (string, error) {
	data, err := content.MarshalRecords(records)
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup %s: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.uploader.Upload(ctx, path); err != nil {
		slog.Warn("offsite backup upload failed", "file", name, "error", err)
	}

	return path, nil
}

// prune deletes the oldest automatic snapshots (by modification time)
// until the count is at or below the retention ceiling.
func (s *Service) prune() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	type aged struct {
		path  string
		mtime time.Time
	}
	var autos []aged
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), autoPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		autos = append(autos, aged{filepath.Join(s.dir, e.Name()), fi.ModTime()})
	}

	if len(autos) <= s.max {
		return 0, nil
	}

	sort.Slice(autos, func(i, j int) bool { return autos[i].mtime.Before(autos[j].mtime) })

	removed := 0
	for _, old := range autos[:len(autos)-s.max] {
		if err := os.Remove(old.path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// List enumerates all snapshot files, newest first. A corrupt snapshot
// reports the UnparseableCount sentinel rather than failing the listing.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan backup directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") || !strings.Contains(name, "backup") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		kind := "manual"
		if strings.HasPrefix(name, autoPrefix) {
			kind = "auto"
		}

		count := UnparseableCount
		if data, err := os.ReadFile(filepath.Join(s.dir, name)); err == nil {
			if records, _, err := content.UnmarshalRecords(data); err == nil {
				count = len(records)
			}
		}

		infos = append(infos, Info{
			Filename:  name,
			Path:      filepath.Join(s.dir, name),
			CreatedAt: fi.ModTime(),
			SizeKB:    float64(fi.Size()) / 1024,
			ItemCount: count,
			Kind:      kind,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// Resolve maps a snapshot file name to its path inside the backup
// directory, rejecting names that would escape it.
func (s *Service) Resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("backup %s: %w", filename, err)
	}
	return path, nil
}

// Read loads a snapshot's records. Non-object elements are dropped, as at
// store load time.
func (s *Service) Read(filename string) ([]content.Record, error) {
	path, err := s.Resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", filename, err)
	}
	records, dropped, err := content.UnmarshalRecords(data)
	if err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", filename, err)
	}
	if dropped > 0 {
		slog.Warn("backup contained non-object entries", "file", filename, "dropped", dropped)
	}
	return records, nil
}
