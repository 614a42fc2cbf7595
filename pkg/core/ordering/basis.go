// Package ordering reconciles per-page drag-and-drop results into a collection-wide
// target order. The Basis holds the believed pre-edit position of every observed
// variant, the Ledger the minimal set of pending changes against it.
package ordering

import "github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"

// Observation describes what RecordObserved did with a sighting.
type Observation int

const (
	ObservedNew Observation = iota
	ObservedSame
	// ObservedConflict means the key was already recorded at a different position.
	// The first position is kept.
	ObservedConflict
)

// Basis maps variants to their original, collection-wide, 1-based position.
type Basis struct {
	positions     map[domain.VariantKey]int
	highest       int
	expectedTotal int
}

func NewBasis() *Basis {
	return &Basis{positions: make(map[domain.VariantKey]int)}
}

// RecordObserved stores position for key unless the key is already known (first write wins).
func (b *Basis) RecordObserved(key domain.VariantKey, position int) Observation {
	if existing, ok := b.positions[key]; ok {
		if existing == position {
			return ObservedSame
		}
		return ObservedConflict
	}
	b.positions[key] = position
	if position > b.highest {
		b.highest = position
	}
	return ObservedNew
}

// RecordPage records the items of an unfiltered page, starting at offset.
// It returns the keys whose recorded position disagrees with this page.
func (b *Basis) RecordPage(items []domain.Product, offset int) []domain.VariantKey {
	var conflicts []domain.VariantKey
	for i, item := range items {
		if b.RecordObserved(item.Key(), offset+i+1) == ObservedConflict {
			conflicts = append(conflicts, item.Key())
		}
	}
	return conflicts
}

func (b *Basis) Lookup(key domain.VariantKey) (int, bool) {
	pos, ok := b.positions[key]
	return pos, ok
}

// SetExpectedTotal records the size of the unfiltered collection as reported by the catalog.
func (b *Basis) SetExpectedTotal(total int) {
	if total > b.expectedTotal {
		b.expectedTotal = total
	}
}

// TotalKnownItems is the highest position observed so far.
func (b *Basis) TotalKnownItems() int { return b.highest }

func (b *Basis) ExpectedTotal() int { return b.expectedTotal }

func (b *Basis) Len() int { return len(b.positions) }

// Complete reports whether every position of the collection has been observed.
// An unknown collection size counts as incomplete.
func (b *Basis) Complete() bool {
	if b.expectedTotal == 0 {
		return false
	}
	return len(b.positions) >= b.expectedTotal && b.highest >= b.expectedTotal
}

// Reset forgets all positions and the cached totals.
func (b *Basis) Reset() {
	b.positions = make(map[domain.VariantKey]int)
	b.highest = 0
	b.expectedTotal = 0
}
