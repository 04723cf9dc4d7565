package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/topika/internal/backup"
	"github.com/hyperengineering/topika/internal/content"
)

// Library composes the active store, the trash and the backup service by
// explicit delegation and serializes every operation behind one mutex:
// the file layer is single-writer, but the HTTP layer dispatches
// concurrent requests.
type Library struct {
	mu     sync.Mutex
	store  *Store
	trash  *Trash
	backup *backup.Service
}

// NewLibrary wires the three services together.
func NewLibrary(s *Store, t *Trash, b *backup.Service) *Library {
	return &Library{store: s, trash: t, backup: b}
}

// SaveContent upserts a record into the active store. Returns the
// effective id.
func (l *Library) SaveContent(rec content.Record) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.SaveContent(rec)
}

// GetByID returns an active record.
func (l *Library) GetByID(id string) (content.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.GetByID(id)
}

// All returns all active records.
func (l *Library) All() []content.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.All()
}

// Search filters the active records.
func (l *Library) Search(query, typeFilter, levelFilter string) []content.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Search(query, typeFilter, levelFilter)
}

// Delete permanently removes an active record. The trash is never
// consulted; use DeleteFromTrash for that.
func (l *Library) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Delete(id)
}

// Trash moves an active record into the trash: the record is stamped,
// appended to the trash file, then removed from the active file. The two
// writes are not atomic; a crash between them leaves the record present
// in both files rather than lost.
func (l *Library) Trash(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.store.GetByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec["trashed_at"] = l.store.now().Format(time.RFC3339)
	if err := l.trash.Add(rec); err != nil {
		delete(rec, "trashed_at")
		return err
	}

	if _, err := l.store.remove(id); err != nil {
		return err
	}
	if err := l.store.save(); err != nil {
		return err
	}

	slog.Info("record moved to trash", "id", id)
	return nil
}

// Restore moves a trashed record back to the active store, clearing
// trashed_at and stamping restored_at. Same two-write window as Trash,
// in the opposite direction.
func (l *Library) Restore(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.trash.GetByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := l.store.now().Format(time.RFC3339)
	delete(rec, "trashed_at")
	rec["restored_at"] = now
	rec["updated_at"] = now

	if err := l.store.append(rec); err != nil {
		return err
	}
	if _, err := l.trash.Remove(id); err != nil {
		return err
	}

	slog.Info("record restored from trash", "id", id)
	return nil
}

// TrashAll returns the trash contents.
func (l *Library) TrashAll() []content.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trash.All()
}

// GetTrashedByID returns a trashed record.
func (l *Library) GetTrashedByID(id string) (content.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trash.GetByID(id)
}

// DeleteFromTrash permanently removes a record from the trash.
func (l *Library) DeleteFromTrash(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.trash.Remove(id)
	return err
}

// EmptyTrash clears the trash and returns the number of records removed.
func (l *Library) EmptyTrash() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trash.Clear()
}

// CreateManualBackup snapshots the current active array on demand.
// Returns the written file path.
func (l *Library) CreateManualBackup() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backup == nil {
		return "", ErrNoBackup
	}
	return l.backup.Manual(l.store.All())
}

// ListBackups enumerates snapshot files, newest first.
func (l *Library) ListBackups() ([]backup.Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backup == nil {
		return nil, ErrNoBackup
	}
	return l.backup.List()
}

// ResolveBackup maps a snapshot name to its file path, for download.
func (l *Library) ResolveBackup(filename string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backup == nil {
		return "", ErrNoBackup
	}
	return l.backup.Resolve(filename)
}

// RestoreFromBackup replaces the active array with a snapshot's contents.
// The current state is snapshotted to a manual backup first as a safety
// net. Entries without a type are skipped, missing ids are assigned, and
// every restored entry carries a provenance marker. Returns the number of
// restored records and the name of the safety-net backup.
func (l *Library) RestoreFromBackup(filename string) (int, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.backup == nil {
		return 0, "", ErrNoBackup
	}

	candidates, err := l.backup.Read(filename)
	if err != nil {
		return 0, "", err
	}

	safetyNet, err := l.backup.Manual(l.store.All())
	if err != nil {
		return 0, "", fmt.Errorf("pre-restore backup failed: %w", err)
	}

	now := l.store.now().Format(time.RFC3339)
	valid := make([]content.Record, 0, len(candidates))
	for _, rec := range candidates {
		if rec.Type() == "" {
			continue
		}
		if rec.ID() == "" {
			rec["id"] = ulid.Make().String()
		}
		rec["restored_from_backup"] = true
		rec["restored_at"] = now
		valid = append(valid, rec)
	}

	if err := l.store.Replace(valid); err != nil {
		return 0, "", err
	}

	slog.Info("active store restored from backup",
		"backup", filename, "items", len(valid), "safety_net", safetyNet)
	return len(valid), safetyNet, nil
}
