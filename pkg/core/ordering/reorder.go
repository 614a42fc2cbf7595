package ordering

import (
	"fmt"
	"sort"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

// ReorderResult reports how a page permutation changed the ledger.
type ReorderResult struct {
	Upserted []domain.OrderChange
	Removed  []domain.VariantKey
	// Gaps are keys that had no basis position and were recorded with an estimated one.
	Gaps []domain.VariantKey
}

// ApplyPageOrder writes the permutation ordered of the page loaded (as served, starting at
// offset) into ledger. Every key receives the global slot offset+i+1. Keys that end up on
// their original slot lose their ledger entry.
func ApplyPageOrder(basis *Basis, ledger *Ledger, offset int, loaded, ordered []domain.VariantKey) (ReorderResult, error) {
	loadedIndex, err := permutationIndex(loaded, ordered)
	if err != nil {
		return ReorderResult{}, err
	}

	var res ReorderResult
	for i, key := range ordered {
		newOrder := offset + i + 1

		original, ok := basis.Lookup(key)
		lowConfidence := false
		if !ok {
			original = offset + loadedIndex[key] + 1
			lowConfidence = true
			res.Gaps = append(res.Gaps, key)
		}

		if newOrder == original {
			if _, exists := ledger.Get(key); exists {
				ledger.RemoveMany(key)
				res.Removed = append(res.Removed, key)
			}
			continue
		}

		change := domain.OrderChange{
			Key:           key,
			OriginalOrder: original,
			NewOrder:      newOrder,
			LowConfidence: lowConfidence,
		}
		ledger.Upsert(change)
		res.Upserted = append(res.Upserted, change)
	}
	return res, nil
}

// ApplyFilteredPageOrder is ApplyPageOrder for a page of a filtered listing, whose slots
// are not collection-wide positions. Keys with a basis position share out the canonical
// slots they currently hold (pending new orders included), in dragged order. Keys without
// one fall back to offset+i+1 and are reported as gaps.
func ApplyFilteredPageOrder(basis *Basis, ledger *Ledger, offset int, loaded, ordered []domain.VariantKey) (ReorderResult, error) {
	loadedIndex, err := permutationIndex(loaded, ordered)
	if err != nil {
		return ReorderResult{}, err
	}

	var slots []int
	for _, key := range ordered {
		if original, ok := basis.Lookup(key); ok {
			slots = append(slots, ledger.DisplayOrder(key, original))
		}
	}
	sort.Ints(slots)

	var res ReorderResult
	next := 0
	for i, key := range ordered {
		original, ok := basis.Lookup(key)
		var newOrder int
		if ok {
			newOrder = slots[next]
			next++
		} else {
			original = offset + loadedIndex[key] + 1
			newOrder = offset + i + 1
			res.Gaps = append(res.Gaps, key)
		}

		if newOrder == original {
			if _, exists := ledger.Get(key); exists {
				ledger.RemoveMany(key)
				res.Removed = append(res.Removed, key)
			}
			continue
		}

		change := domain.OrderChange{
			Key:           key,
			OriginalOrder: original,
			NewOrder:      newOrder,
			LowConfidence: !ok,
		}
		ledger.Upsert(change)
		res.Upserted = append(res.Upserted, change)
	}
	return res, nil
}

func permutationIndex(loaded, ordered []domain.VariantKey) (map[domain.VariantKey]int, error) {
	if len(loaded) != len(ordered) {
		return nil, fmt.Errorf("%w: %d items loaded, %d given", domain.ErrNotPermutation, len(loaded), len(ordered))
	}

	index := make(map[domain.VariantKey]int, len(loaded))
	for i, key := range loaded {
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate loaded key %s", domain.ErrNotPermutation, key)
		}
		index[key] = i
	}

	seen := make(map[domain.VariantKey]struct{}, len(ordered))
	for _, key := range ordered {
		if _, ok := index[key]; !ok {
			return nil, fmt.Errorf("%w: unknown key %s", domain.ErrNotPermutation, key)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %s", domain.ErrNotPermutation, key)
		}
		seen[key] = struct{}{}
	}
	return index, nil
}

// MoveItem returns a copy of items with the element at from moved to to.
func MoveItem[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}

	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out
}
