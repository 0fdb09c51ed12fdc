package memory

import (
	"fmt"
	"sort"

	"herdcore/pkg/domain"
)

// table adapts one state map to domain.Table. Views carry a nil tx and are
// read-only.
type table[T any, P domain.Entity[T]] struct {
	kind domain.EntityType
	rows map[string]T
	tx   *transaction
}

func newTable[T any, P domain.Entity[T]](kind domain.EntityType, rows map[string]T, tx *transaction) table[T, P] {
	return table[T, P]{kind: kind, rows: rows, tx: tx}
}

func cloneOf[T any, P domain.Entity[T]](v T) T {
	return P(&v).Clone()
}

func ref[T any, P domain.Entity[T]](v T) P {
	c := cloneOf[T, P](v)
	return P(&c)
}

// Get returns a copy of the record with id.
func (t table[T, P]) Get(id string) (T, bool) {
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return cloneOf[T, P](v), true
}

// List returns copies of all records ordered by id.
func (t table[T, P]) List() []T {
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneOf[T, P](t.rows[id]))
	}
	return out
}

// Create stores a new record, generating an id when empty.
func (t table[T, P]) Create(v T) (T, error) {
	var zero T
	if t.tx == nil {
		return zero, fmt.Errorf("%s: read-only view", t.kind)
	}
	meta := P(&v).Meta()
	if meta.ID == "" {
		meta.ID = t.tx.store.newID()
	}
	if _, exists := t.rows[meta.ID]; exists {
		return zero, fmt.Errorf("%s %q already exists", t.kind, meta.ID)
	}
	meta.CreatedAt = t.tx.now
	meta.UpdatedAt = t.tx.now
	t.rows[meta.ID] = cloneOf[T, P](v)
	t.tx.recordChange(domain.Change{Entity: t.kind, Action: domain.ActionCreate, After: ref[T, P](v)})
	return cloneOf[T, P](v), nil
}

// Update applies mutator to a copy of the record and stores the result.
func (t table[T, P]) Update(id string, mutator func(*T) error) (T, error) {
	var zero T
	if t.tx == nil {
		return zero, fmt.Errorf("%s: read-only view", t.kind)
	}
	current, ok := t.rows[id]
	if !ok {
		return zero, fmt.Errorf("%s %q not found", t.kind, id)
	}
	before := ref[T, P](current)
	current = cloneOf[T, P](current)
	if err := mutator(&current); err != nil {
		return zero, err
	}
	meta := P(&current).Meta()
	meta.ID = id
	meta.CreatedAt = before.Meta().CreatedAt
	meta.UpdatedAt = t.tx.now
	t.rows[id] = cloneOf[T, P](current)
	t.tx.recordChange(domain.Change{Entity: t.kind, Action: domain.ActionUpdate, Before: before, After: ref[T, P](current)})
	return cloneOf[T, P](current), nil
}

// Delete removes the record with id.
func (t table[T, P]) Delete(id string) error {
	if t.tx == nil {
		return fmt.Errorf("%s: read-only view", t.kind)
	}
	current, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("%s %q not found", t.kind, id)
	}
	delete(t.rows, id)
	t.tx.recordChange(domain.Change{Entity: t.kind, Action: domain.ActionDelete, Before: ref[T, P](current)})
	return nil
}

func cloneRows[T any, P domain.Entity[T]](in map[string]T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = cloneOf[T, P](v)
	}
	return out
}
