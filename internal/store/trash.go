package store

import (
	"fmt"
	"time"

	"github.com/hyperengineering/topika/internal/content"
)

// Trash holds soft-deleted records in a second file, structurally
// identical to the active store. It never triggers backups.
type Trash struct {
	path    string
	records []content.Record
	now     func() time.Time
}

// OpenTrash loads the trash file under the same quarantine and
// invalid-entry rules as the active store.
func OpenTrash(path string) (*Trash, error) {
	records, err := loadArray(path, time.Now)
	if err != nil {
		return nil, err
	}
	return &Trash{path: path, records: records, now: time.Now}, nil
}

// All returns the trashed records in storage order.
func (t *Trash) All() []content.Record {
	out := make([]content.Record, len(t.records))
	copy(out, t.records)
	return out
}

// GetByID returns the trashed record with the given id.
func (t *Trash) GetByID(id string) (content.Record, bool) {
	for _, r := range t.records {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

func (t *Trash) save() error {
	return writeArray(t.path, t.records)
}

// Add appends a record to the trash and persists.
func (t *Trash) Add(rec content.Record) error {
	t.records = append(t.records, rec)
	if err := t.save(); err != nil {
		t.records = t.records[:len(t.records)-1]
		return err
	}
	return nil
}

// Remove takes a record out of the trash and persists. Used both for
// restore and for permanent deletion.
func (t *Trash) Remove(id string) (content.Record, error) {
	for i, r := range t.records {
		if r.ID() == id {
			t.records = append(t.records[:i], t.records[i+1:]...)
			if err := t.save(); err != nil {
				t.records = append(t.records, r)
				return nil, err
			}
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Clear empties the trash unconditionally. Returns the number removed.
func (t *Trash) Clear() (int, error) {
	count := len(t.records)
	previous := t.records
	t.records = []content.Record{}
	if err := t.save(); err != nil {
		t.records = previous
		return 0, err
	}
	return count, nil
}
