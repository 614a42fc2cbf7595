package ordering

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

func keys(codes ...string) []domain.VariantKey {
	out := make([]domain.VariantKey, 0, len(codes))
	for _, c := range codes {
		out = append(out, key(c))
	}
	return out
}

func TestApplyPageOrderSwapFirstTwo(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()
	basis.RecordPage(products("X", "Y", "Z"), 0)

	res, err := ApplyPageOrder(basis, ledger, 0, keys("X", "Y", "Z"), keys("Y", "X", "Z"))
	require.NoError(t, err)
	assert.Len(t, res.Upserted, 2)
	assert.Empty(t, res.Gaps)

	y, ok := ledger.Get(key("Y"))
	require.True(t, ok)
	assert.Equal(t, domain.OrderChange{Key: key("Y"), OriginalOrder: 2, NewOrder: 1}, y)
	x, ok := ledger.Get(key("X"))
	require.True(t, ok)
	assert.Equal(t, domain.OrderChange{Key: key("X"), OriginalOrder: 1, NewOrder: 2}, x)
	_, ok = ledger.Get(key("Z"))
	assert.False(t, ok)

	entries, renumbered, err := Derive(ledger.All(), PolicyReject)
	require.NoError(t, err)
	assert.False(t, renumbered)
	assert.Equal(t, []domain.PayloadEntry{
		{ProductCode: "Y", ColorCode: "01", Position: 1},
		{ProductCode: "X", ColorCode: "01", Position: 2},
	}, entries)
}

func TestApplyPageOrderDragBackEmptiesLedger(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()
	basis.RecordPage(products("X", "Y", "Z"), 0)

	_, err := ApplyPageOrder(basis, ledger, 0, keys("X", "Y", "Z"), keys("Y", "X", "Z"))
	require.NoError(t, err)

	res, err := ApplyPageOrder(basis, ledger, 0, keys("X", "Y", "Z"), keys("X", "Y", "Z"))
	require.NoError(t, err)
	assert.ElementsMatch(t, keys("X", "Y"), res.Removed)
	assert.False(t, ledger.HasChanges())
}

func TestApplyPageOrderRandomDragsBackToOriginal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	loaded := keys("A", "B", "C", "D", "E", "F", "G", "H")
	offset := 36

	for round := 0; round < 50; round++ {
		basis := NewBasis()
		ledger := NewLedger()
		basis.RecordPage(products("A", "B", "C", "D", "E", "F", "G", "H"), offset)

		current := loaded
		for drag := 0; drag < 10; drag++ {
			current = MoveItem(current, rng.Intn(len(current)), rng.Intn(len(current)))
			_, err := ApplyPageOrder(basis, ledger, offset, loaded, current)
			require.NoError(t, err)

			for i, k := range current {
				change, ok := ledger.Get(k)
				if offset+i+1 == offset+indexOf(loaded, k)+1 {
					assert.False(t, ok, "%s sits on its original slot but has a ledger entry", k)
				} else {
					require.True(t, ok)
					assert.Equal(t, offset+i+1, change.NewOrder)
				}
			}
		}

		_, err := ApplyPageOrder(basis, ledger, offset, loaded, loaded)
		require.NoError(t, err)
		assert.False(t, ledger.HasChanges())
	}
}

func TestApplyPageOrderBasisGap(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()

	res, err := ApplyPageOrder(basis, ledger, 36, keys("P", "Q"), keys("Q", "P"))
	require.NoError(t, err)
	assert.ElementsMatch(t, keys("P", "Q"), res.Gaps)

	q, ok := ledger.Get(key("Q"))
	require.True(t, ok)
	assert.Equal(t, 38, q.OriginalOrder)
	assert.Equal(t, 37, q.NewOrder)
	assert.True(t, q.LowConfidence)

	_, err = ApplyPageOrder(basis, ledger, 36, keys("P", "Q"), keys("P", "Q"))
	require.NoError(t, err)
	assert.False(t, ledger.HasChanges())
}

func TestApplyPageOrderRejectsNonPermutation(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()

	tests := []struct {
		name    string
		ordered []domain.VariantKey
	}{
		{name: "missing item", ordered: keys("A")},
		{name: "unknown item", ordered: keys("A", "Q")},
		{name: "duplicate item", ordered: keys("A", "A")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyPageOrder(basis, ledger, 0, keys("A", "B"), tt.ordered)
			assert.ErrorIs(t, err, domain.ErrNotPermutation)
			assert.False(t, ledger.HasChanges())
		})
	}
}

func TestMoveItem(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"b", "c", "a", "d"}, MoveItem(in, 0, 2))
	assert.Equal(t, []string{"d", "a", "b", "c"}, MoveItem(in, 3, 0))
	assert.Equal(t, in, MoveItem(in, 1, 1))
	assert.Equal(t, in, MoveItem(in, -1, 2))
	assert.Equal(t, []string{"a", "b", "c", "d"}, in, "input is not modified")
}

func indexOf(list []domain.VariantKey, k domain.VariantKey) int {
	for i, v := range list {
		if v == k {
			return i
		}
	}
	return -1
}

func TestApplyFilteredPageOrderUsesCanonicalSlots(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()
	basis.RecordPage(products("A", "B", "C", "D", "E", "F"), 0)

	// the filtered listing serves B, D, F at slots 1..3
	res, err := ApplyFilteredPageOrder(basis, ledger, 0, keys("B", "D", "F"), keys("D", "B", "F"))
	require.NoError(t, err)
	assert.Empty(t, res.Gaps)
	assert.Equal(t, []domain.OrderChange{
		{Key: key("D"), OriginalOrder: 4, NewOrder: 2},
		{Key: key("B"), OriginalOrder: 2, NewOrder: 4},
	}, ledger.Sorted())

	res, err = ApplyFilteredPageOrder(basis, ledger, 0, keys("B", "D", "F"), keys("B", "D", "F"))
	require.NoError(t, err)
	assert.ElementsMatch(t, keys("B", "D"), res.Removed)
	assert.False(t, ledger.HasChanges())
}

func TestApplyFilteredPageOrderKeepsPendingSlots(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()
	basis.RecordPage(products("A", "B", "C", "D"), 0)

	// unfiltered: D moved to the front
	_, err := ApplyPageOrder(basis, ledger, 0, keys("A", "B", "C", "D"), keys("D", "A", "B", "C"))
	require.NoError(t, err)

	// filtered page shows D and C, currently at slots 1 and 4
	_, err = ApplyFilteredPageOrder(basis, ledger, 0, keys("D", "C"), keys("C", "D"))
	require.NoError(t, err)

	c, ok := ledger.Get(key("C"))
	require.True(t, ok)
	assert.Equal(t, domain.OrderChange{Key: key("C"), OriginalOrder: 3, NewOrder: 1}, c)
	// D is back on its original slot
	_, ok = ledger.Get(key("D"))
	assert.False(t, ok)

	entries, _, err := Derive(ledger.All(), PolicyReject)
	require.NoError(t, err)
	assert.Equal(t, []domain.PayloadEntry{
		{ProductCode: "C", ColorCode: "01", Position: 1},
		{ProductCode: "A", ColorCode: "01", Position: 2},
		{ProductCode: "B", ColorCode: "01", Position: 3},
	}, entries)
}

func TestApplyFilteredPageOrderGap(t *testing.T) {
	basis := NewBasis()
	ledger := NewLedger()
	basis.RecordPage(products("A", "B", "C"), 0)

	res, err := ApplyFilteredPageOrder(basis, ledger, 0, keys("C", "Z"), keys("Z", "C"))
	require.NoError(t, err)
	assert.Equal(t, keys("Z"), res.Gaps)

	z, ok := ledger.Get(key("Z"))
	require.True(t, ok)
	assert.Equal(t, domain.OrderChange{Key: key("Z"), OriginalOrder: 2, NewOrder: 1, LowConfidence: true}, z)
	_, ok = ledger.Get(key("C"))
	assert.False(t, ok)
}
