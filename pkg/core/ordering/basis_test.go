package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

func products(keys ...string) []domain.Product {
	out := make([]domain.Product, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.Product{ProductCode: k, ColorCode: "01"})
	}
	return out
}

func key(code string) domain.VariantKey {
	return domain.NewVariantKey(code, "01")
}

func TestBasisFirstWriteWins(t *testing.T) {
	b := NewBasis()

	assert.Equal(t, ObservedNew, b.RecordObserved(key("A"), 5))
	assert.Equal(t, ObservedConflict, b.RecordObserved(key("A"), 9))
	assert.Equal(t, ObservedSame, b.RecordObserved(key("A"), 5))

	pos, ok := b.Lookup(key("A"))
	require.True(t, ok)
	assert.Equal(t, 5, pos)
	assert.Equal(t, 5, b.TotalKnownItems())
}

func TestBasisRecordPage(t *testing.T) {
	b := NewBasis()
	conflicts := b.RecordPage(products("A", "B", "C"), 36)
	assert.Empty(t, conflicts)

	pos, ok := b.Lookup(key("C"))
	require.True(t, ok)
	assert.Equal(t, 39, pos)

	conflicts = b.RecordPage(products("C", "D"), 0)
	assert.Equal(t, []domain.VariantKey{key("C")}, conflicts)
	pos, _ = b.Lookup(key("C"))
	assert.Equal(t, 39, pos)
}

func TestBasisCompleteness(t *testing.T) {
	b := NewBasis()
	assert.False(t, b.Complete(), "unknown total is incomplete")

	b.SetExpectedTotal(4)
	b.RecordPage(products("A", "B"), 0)
	assert.False(t, b.Complete())

	b.RecordPage(products("C", "D"), 2)
	assert.True(t, b.Complete())
	assert.Equal(t, 4, b.TotalKnownItems())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.TotalKnownItems())
	assert.Equal(t, 0, b.ExpectedTotal())
	_, ok := b.Lookup(key("A"))
	assert.False(t, ok)
}
