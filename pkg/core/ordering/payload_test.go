package ordering

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

func TestDerivePositionsStrictlyIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		ledger := NewLedger()
		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			ledger.Upsert(domain.OrderChange{
				Key:           domain.NewVariantKey(fmt.Sprintf("P%02d", rng.Intn(30)), "01"),
				OriginalOrder: rng.Intn(60) + 1,
				NewOrder:      rng.Intn(60) + 1,
			})
		}

		for _, policy := range []CollisionPolicy{PolicyReject, PolicyRenumber} {
			entries, _, err := Derive(ledger.All(), policy)
			if err != nil {
				require.Equal(t, PolicyReject, policy)
				require.ErrorIs(t, err, domain.ErrPositionCollision)
				continue
			}
			require.Len(t, entries, ledger.Len())
			for i := 1; i < len(entries); i++ {
				assert.Less(t, entries[i-1].Position, entries[i].Position)
			}
		}
	}
}

func TestDeriveCrossPageCollision(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()

	// page 2 of the unfiltered listing
	page2 := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		page2 = append(page2, fmt.Sprintf("U%d", i))
	}
	basis.RecordPage(products(page2...), 36)
	_, err := ApplyPageOrder(basis, ledger, 36, keys(page2...), keys("U1", "U2", "U3", "U0", "U4", "U5"))
	require.NoError(t, err)

	// page 2 of a filtered listing puts a different item on global slot 40
	_, err = ApplyPageOrder(basis, ledger, 36, keys("F0", "F1", "F2", "F3", "F4"), keys("F0", "F1", "F2", "F4", "F3"))
	require.NoError(t, err)

	_, _, err = Derive(ledger.All(), PolicyReject)
	var collision *domain.CollisionError
	require.True(t, errors.As(err, &collision))
	assert.ElementsMatch(t, keys("U0", "F4"), collision.Collisions[40])

	entries, renumbered, err := Derive(ledger.All(), PolicyRenumber)
	require.NoError(t, err)
	assert.True(t, renumbered)
	seen := map[int]bool{}
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
		assert.False(t, seen[e.Position])
		seen[e.Position] = true
	}
}

func TestPlanWarnings(t *testing.T) {
	basis := NewBasis()
	basis.SetExpectedTotal(100)
	basis.RecordPage(products("A", "B"), 0)
	ledger := NewLedger()

	_, err := ApplyPageOrder(basis, ledger, 0, keys("A", "B"), keys("B", "A"))
	require.NoError(t, err)
	_, err = ApplyPageOrder(basis, ledger, 72, keys("G", "H"), keys("H", "G"))
	require.NoError(t, err)

	plan, err := Plan(ledger, basis, PolicyReject)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 4)

	kinds := map[WarningKind]Warning{}
	for _, w := range plan.Warnings {
		kinds[w.Kind] = w
	}
	require.Contains(t, kinds, WarningBasisGap)
	assert.Equal(t, keys("G", "H"), kinds[WarningBasisGap].Keys)
	assert.Contains(t, kinds, WarningIncompleteBasis)
	assert.NotContains(t, kinds, WarningRenumbered)
}

func TestPlanEmptyLedger(t *testing.T) {
	plan, err := Plan(NewLedger(), NewBasis(), PolicyReject)
	require.NoError(t, err)
	assert.Empty(t, plan.Entries)
	assert.Empty(t, plan.Warnings)
}

func TestParseCollisionPolicy(t *testing.T) {
	p, err := ParseCollisionPolicy("Renumber")
	require.NoError(t, err)
	assert.Equal(t, PolicyRenumber, p)

	p, err = ParseCollisionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	_, err = ParseCollisionPolicy("merge")
	assert.Error(t, err)
}
