package ordering

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

// CollisionPolicy decides what happens when two changes target the same position.
type CollisionPolicy int

const (
	// PolicyReject fails derivation with a *domain.CollisionError.
	PolicyReject CollisionPolicy = iota
	// PolicyRenumber compacts the new positions to a dense 1..N sequence.
	PolicyRenumber
)

func (p CollisionPolicy) String() string {
	if p == PolicyRenumber {
		return "renumber"
	}
	return "reject"
}

// ParseCollisionPolicy accepts "reject" and "renumber".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return PolicyReject, nil
	case "renumber":
		return PolicyRenumber, nil
	default:
		return PolicyReject, fmt.Errorf("unknown collision policy %q", s)
	}
}

type WarningKind string

const (
	WarningBasisGap        WarningKind = "basis_gap"
	WarningIncompleteBasis WarningKind = "incomplete_basis"
	WarningRenumbered      WarningKind = "renumbered"
)

// Warning is a non-blocking condition the operator should see before saving.
type Warning struct {
	Kind    WarningKind         `json:"kind"`
	Keys    []domain.VariantKey `json:"keys,omitempty"`
	Message string              `json:"message"`
}

// SavePlan is the derived payload together with the warnings that apply to it.
type SavePlan struct {
	Entries  []domain.PayloadEntry `json:"products"`
	Warnings []Warning             `json:"warnings,omitempty"`
}

// Derive flattens changes into a payload ordered by position, ties broken by key.
// Colliding positions are rejected or renumbered according to policy; the result
// never contains a duplicate position.
func Derive(changes []domain.OrderChange, policy CollisionPolicy) ([]domain.PayloadEntry, bool, error) {
	sorted := make([]domain.OrderChange, len(changes))
	copy(sorted, changes)
	sortChanges(sorted)

	collisions := findCollisions(sorted)
	renumbered := false
	if len(collisions) > 0 {
		if policy != PolicyRenumber {
			return nil, false, &domain.CollisionError{Collisions: collisions}
		}
		renumbered = true
	}

	entries := make([]domain.PayloadEntry, 0, len(sorted))
	for i, change := range sorted {
		position := change.NewOrder
		if renumbered {
			position = i + 1
		}
		entries = append(entries, domain.PayloadEntry{
			ProductCode: change.Key.ProductCode,
			ColorCode:   change.Key.ColorCode,
			Position:    position,
		})
	}
	return entries, renumbered, nil
}

// Plan derives the payload for ledger and attaches basis warnings.
func Plan(ledger *Ledger, basis *Basis, policy CollisionPolicy) (*SavePlan, error) {
	changes := ledger.All()
	entries, renumbered, err := Derive(changes, policy)
	if err != nil {
		return nil, err
	}

	plan := &SavePlan{Entries: entries}

	var gaps []domain.VariantKey
	for _, change := range changes {
		if _, ok := basis.Lookup(change.Key); !ok || change.LowConfidence {
			gaps = append(gaps, change.Key)
		}
	}
	if len(gaps) > 0 {
		sortKeys(gaps)
		plan.Warnings = append(plan.Warnings, Warning{
			Kind:    WarningBasisGap,
			Keys:    gaps,
			Message: fmt.Sprintf("%d changed item(s) have no known original position", len(gaps)),
		})
	}
	if len(changes) > 0 && !basis.Complete() {
		plan.Warnings = append(plan.Warnings, Warning{
			Kind: WarningIncompleteBasis,
			Message: fmt.Sprintf("original order known for %d of %d item(s); untouched items are assumed to keep their position",
				basis.Len(), basis.ExpectedTotal()),
		})
	}
	if renumbered {
		plan.Warnings = append(plan.Warnings, Warning{
			Kind:    WarningRenumbered,
			Message: fmt.Sprintf("colliding positions were compacted to 1..%d", len(entries)),
		})
	}
	return plan, nil
}

func findCollisions(sorted []domain.OrderChange) map[int][]domain.VariantKey {
	var collisions map[int][]domain.VariantKey
	for i := 1; i < len(sorted); i++ {
		if sorted[i].NewOrder != sorted[i-1].NewOrder {
			continue
		}
		if collisions == nil {
			collisions = make(map[int][]domain.VariantKey)
		}
		pos := sorted[i].NewOrder
		if len(collisions[pos]) == 0 {
			collisions[pos] = append(collisions[pos], sorted[i-1].Key)
		}
		collisions[pos] = append(collisions[pos], sorted[i].Key)
	}
	return collisions
}

func sortKeys(keys []domain.VariantKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
