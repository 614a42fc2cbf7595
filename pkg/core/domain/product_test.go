package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariantKey(t *testing.T) {
	key, err := ParseVariantKey("P100-01")
	require.NoError(t, err)
	assert.Equal(t, NewVariantKey("P100", "01"), key)
	assert.Equal(t, "P100-01", key.String())

	key, err = ParseVariantKey("AB-12-RED")
	require.NoError(t, err)
	assert.Equal(t, NewVariantKey("AB-12", "RED"), key)

	for _, bad := range []string{"", "P100", "-01"} {
		_, err := ParseVariantKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilterSetCanonical(t *testing.T) {
	a := FilterSet{Filters: []AdditionalFilter{{ID: "color", Value: "red"}, {ID: "size", Value: "M"}}}
	b := FilterSet{Filters: []AdditionalFilter{{ID: "size", Value: "M"}, {ID: "color", Value: "red"}}}
	assert.Equal(t, a.Canonical(), b.Canonical())

	b.UseOrLogic = true
	assert.NotEqual(t, a.Canonical(), b.Canonical())
	assert.True(t, a.Contains("size", "M"))
	assert.False(t, a.Contains("size", "L"))
	assert.True(t, FilterSet{}.Empty())
}

func TestProductPagePaging(t *testing.T) {
	page := ProductPage{Page: 3, PageSize: 36, TotalCount: 80}
	assert.Equal(t, 72, page.Offset())
	assert.Equal(t, 3, page.TotalPages())
	assert.Equal(t, 0, PageOffset(0, 36))
}
