// Package store persists content records as JSON array files: an active
// store, a parallel trash file, and a Library facade that composes them
// with the backup service. Every mutation is a full-file rewrite; there is
// no batching and no partial I/O.
package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/topika/internal/backup"
	"github.com/hyperengineering/topika/internal/content"
)

// Store holds the active content array mirrored to a single file.
// It is not safe for concurrent use on its own; the Library serializes
// access for the HTTP layer.
type Store struct {
	path    string
	backup  *backup.Service
	auto    bool
	records []content.Record
	now     func() time.Time
	newID   func() string
}

// OpenStore loads the active file, applying the quarantine and
// invalid-entry rules, and takes the day's automatic backup when due.
func OpenStore(path string, b *backup.Service, autoBackup bool) (*Store, error) {
	records, err := loadArray(path, time.Now)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:    path,
		backup:  b,
		auto:    autoBackup && b != nil,
		records: records,
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
	}

	if s.auto {
		if _, err := b.Auto(s.records); err != nil {
			slog.Warn("automatic backup on open failed", "error", err)
		}
	}

	return s, nil
}

// WithClock overrides the time source. Test seam.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// All returns the active records in storage order.
func (s *Store) All() []content.Record {
	out := make([]content.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of active records.
func (s *Store) Len() int { return len(s.records) }

// GetByID returns the record with the given id.
func (s *Store) GetByID(id string) (content.Record, bool) {
	for _, r := range s.records {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// save runs the automatic backup check, then rewrites the file. The
// backup snapshots the pre-mutation state on the first save of a day.
func (s *Store) save() error {
	if s.auto {
		if _, err := s.backup.Auto(s.records); err != nil {
			slog.Warn("automatic backup failed", "error", err)
		}
	}
	if err := writeArray(s.path, s.records); err != nil {
		slog.Error("active store save failed", "error", err)
		return err
	}
	return nil
}

// SaveContent upserts a record. An existing id updates in place,
// preserving the original created_at; otherwise a new id is assigned and
// the record appended. Returns the effective id.
func (s *Store) SaveContent(rec content.Record) (string, error) {
	if rec == nil {
		return "", content.ErrNotMapping
	}
	now := s.now().Format(time.RFC3339)

	if id := rec.ID(); id != "" {
		for i, existing := range s.records {
			if existing.ID() != id {
				continue
			}
			rec["updated_at"] = now
			if _, ok := rec["created_at"]; !ok {
				if created, ok := existing["created_at"]; ok {
					rec["created_at"] = created
				}
			}
			s.records[i] = rec
			return id, s.save()
		}
	}

	if rec.ID() == "" {
		rec["id"] = s.newID()
	}
	if _, ok := rec["created_at"]; !ok {
		rec["created_at"] = now
	}
	rec["updated_at"] = now

	s.records = append(s.records, rec)
	return rec.ID(), s.save()
}

// Delete permanently removes a record from the active store only. Records
// in the trash are untouched; purging those is the trash's own operation.
func (s *Store) Delete(id string) error {
	rec, err := s.remove(id)
	if err != nil {
		return err
	}
	if err := s.save(); err != nil {
		// Put it back so memory matches the file.
		s.records = append(s.records, rec)
		return err
	}
	return nil
}

// remove takes a record out of the in-memory array without persisting.
func (s *Store) remove(id string) (content.Record, error) {
	for i, r := range s.records {
		if r.ID() == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// append adds a record and persists. Used by restore paths.
func (s *Store) append(rec content.Record) error {
	s.records = append(s.records, rec)
	return s.save()
}

// Replace swaps the whole active array and persists. Used by
// restore-from-backup.
func (s *Store) Replace(records []content.Record) error {
	s.records = records
	return s.save()
}

// Search filters records by exact type, then exact level, then a
// case-insensitive substring query over a fixed field set, short-circuiting
// per record on the first matching field. Match order follows storage
// order; there is no ranking.
func (s *Store) Search(query, typeFilter, levelFilter string) []content.Record {
	results := make([]content.Record, 0, len(s.records))
	for _, r := range s.records {
		if typeFilter != "" && r.Type() != typeFilter {
			continue
		}
		if levelFilter != "" && r.Level() != levelFilter {
			continue
		}
		if query != "" && !matchesQuery(r, strings.ToLower(query)) {
			continue
		}
		results = append(results, r)
	}
	return results
}

var (
	scalarSearchFields   = []string{"topic", "title", "situation", "place"}
	sliceSearchFields    = []string{"keywords", "dialogue"}
	fallbackSearchFields = []string{"text", "script"}
)

func matchesQuery(r content.Record, query string) bool {
	for _, f := range scalarSearchFields {
		if v, ok := r[f].(string); ok && strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	for _, f := range sliceSearchFields {
		for _, v := range r.StringSlice(f) {
			if strings.Contains(strings.ToLower(v), query) {
				return true
			}
		}
	}
	for _, f := range fallbackSearchFields {
		if v, ok := r[f].(string); ok && strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}
