package ordering

import (
	"sort"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

// Ledger holds at most one pending OrderChange per variant.
type Ledger struct {
	changes map[domain.VariantKey]domain.OrderChange
}

func NewLedger() *Ledger {
	return &Ledger{changes: make(map[domain.VariantKey]domain.OrderChange)}
}

// Upsert replaces any existing change for the same key.
func (l *Ledger) Upsert(change domain.OrderChange) {
	l.changes[change.Key] = change
}

func (l *Ledger) Get(key domain.VariantKey) (domain.OrderChange, bool) {
	change, ok := l.changes[key]
	return change, ok
}

func (l *Ledger) RemoveMany(keys ...domain.VariantKey) {
	for _, key := range keys {
		delete(l.changes, key)
	}
}

func (l *Ledger) Clear() {
	l.changes = make(map[domain.VariantKey]domain.OrderChange)
}

// All returns the changes in no particular order.
func (l *Ledger) All() []domain.OrderChange {
	out := make([]domain.OrderChange, 0, len(l.changes))
	for _, change := range l.changes {
		out = append(out, change)
	}
	return out
}

// Sorted returns the changes ordered by new position, ties broken by key.
func (l *Ledger) Sorted() []domain.OrderChange {
	out := l.All()
	sortChanges(out)
	return out
}

func (l *Ledger) HasChanges() bool { return len(l.changes) > 0 }

func (l *Ledger) Len() int { return len(l.changes) }

// DisplayOrder returns the pending position of key, or fallback if it has none.
func (l *Ledger) DisplayOrder(key domain.VariantKey, fallback int) int {
	if change, ok := l.changes[key]; ok {
		return change.NewOrder
	}
	return fallback
}

func sortChanges(changes []domain.OrderChange) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].NewOrder != changes[j].NewOrder {
			return changes[i].NewOrder < changes[j].NewOrder
		}
		return changes[i].Key.Less(changes[j].Key)
	})
}
