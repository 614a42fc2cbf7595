package domain

import "time"

// OrderChange records a variant whose position differs from the original order basis.
// LowConfidence is set when the original position was not known and had to be estimated.
type OrderChange struct {
	Key           VariantKey `json:"key"`
	OriginalOrder int        `json:"originalOrder"`
	NewOrder      int        `json:"newOrder"`
	LowConfidence bool       `json:"lowConfidence,omitempty"`
}

// PayloadEntry is one line of the save request body
type PayloadEntry struct {
	ProductCode string `json:"productCode"`
	ColorCode   string `json:"colorCode"`
	Position    int    `json:"position"`
}

func (e PayloadEntry) Key() VariantKey {
	return NewVariantKey(e.ProductCode, e.ColorCode)
}

// SaveRequest is submitted to the save endpoint
type SaveRequest struct {
	CollectionID int64          `json:"collectionId"`
	Products     []PayloadEntry `json:"products"`
}

// SaveResult is what the save endpoint answers with on success
type SaveResult struct {
	CollectionID         int64     `json:"collectionId"`
	UpdatedProductsCount int       `json:"updatedProductsCount"`
	UpdatedAt            time.Time `json:"updatedAt"`
	SaveID               string    `json:"saveId,omitempty"`
}

// SaveRecord is the stored history entry of an accepted save
type SaveRecord struct {
	ID           string    `json:"id"`
	CollectionID int64     `json:"collection_id"`
	Actor        string    `json:"actor"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}
