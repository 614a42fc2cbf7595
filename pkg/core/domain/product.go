package domain

import (
	"fmt"
	"sort"
	"strings"
)

// VariantKey identifies a product+color pair, the unit of ordering
type VariantKey struct {
	ProductCode string
	ColorCode   string
}

func NewVariantKey(productCode, colorCode string) VariantKey {
	return VariantKey{ProductCode: productCode, ColorCode: colorCode}
}

// ParseVariantKey is the inverse of VariantKey.String. The color code is taken after the
// last '-', so product codes may contain dashes and color codes may not.
func ParseVariantKey(s string) (VariantKey, error) {
	i := strings.LastIndex(s, "-")
	if i <= 0 {
		return VariantKey{}, fmt.Errorf("invalid variant key %q", s)
	}
	return NewVariantKey(s[:i], s[i+1:]), nil
}

func (k VariantKey) String() string {
	return k.ProductCode + "-" + k.ColorCode
}

// Less orders keys by product code, then color code.
func (k VariantKey) Less(other VariantKey) bool {
	if k.ProductCode != other.ProductCode {
		return k.ProductCode < other.ProductCode
	}
	return k.ColorCode < other.ColorCode
}

// Product is a collection member as returned by the catalog API
type Product struct {
	ProductCode string  `json:"productCode"`
	ColorCode   string  `json:"colorCode"`
	Name        *string `json:"name"`
	OutOfStock  bool    `json:"outOfStock"`
	IsSaleB2B   bool    `json:"isSaleB2B"`
	ImageURL    string  `json:"imageUrl"`
	CreatedOn   string  `json:"createdOn,omitempty"`
}

func (p Product) Key() VariantKey {
	return NewVariantKey(p.ProductCode, p.ColorCode)
}

// ProductPage is one page of a (possibly filtered) product listing
type ProductPage struct {
	Items      []Product `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

// Offset is the number of items that precede this page in its listing.
func (p ProductPage) Offset() int {
	return PageOffset(p.Page, p.PageSize)
}

func PageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// TotalPages returns the number of pages in the listing this page belongs to
func (p ProductPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

type FilterValue struct {
	Value     string  `json:"value"`
	ValueName *string `json:"valueName"`
}

// Filter is a filter dimension the catalog offers for a collection.
type Filter struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Values         []FilterValue `json:"values"`
	Currency       *string       `json:"currency"`
	ComparisonType int           `json:"comparisonType"`
}

// AdditionalFilter is one selected filter value
type AdditionalFilter struct {
	ID             string `json:"id"`
	Value          string `json:"value"`
	ComparisonType int    `json:"comparisonType"`
}

// FilterSet is the active filter selection. UseOrLogic mirrors the collection-level flag.
type FilterSet struct {
	UseOrLogic bool               `json:"useOrLogic"`
	Filters    []AdditionalFilter `json:"additionalFilters"`
}

func (f FilterSet) Empty() bool {
	return len(f.Filters) == 0
}

// Contains reports whether a filter with the same id and value is selected.
func (f FilterSet) Contains(id, value string) bool {
	for _, existing := range f.Filters {
		if existing.ID == id && existing.Value == value {
			return true
		}
	}
	return false
}

// Canonical returns an order-independent representation used to compare filter selections.
func (f FilterSet) Canonical() string {
	parts := make([]string, 0, len(f.Filters))
	for _, filter := range f.Filters {
		parts = append(parts, fmt.Sprintf("%s=%s:%d", filter.ID, filter.Value, filter.ComparisonType))
	}
	sort.Strings(parts)
	mode := "and"
	if f.UseOrLogic {
		mode = "or"
	}
	return mode + "|" + strings.Join(parts, ",")
}
