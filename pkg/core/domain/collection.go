package domain

import "time"

// Collection is a named, ordered group of products on the catalog side
type Collection struct {
	ID             int64             `json:"id"`
	Filters        CollectionFilters `json:"filters"`
	Type           int               `json:"type"`
	Info           CollectionInfo    `json:"info"`
	SalesChannelID int64             `json:"salesChannelId"`
}

type CollectionInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	LangCode    string `json:"langCode"`
}

// CollectionFilters are the constant filters a collection is defined by.
type CollectionFilters struct {
	UseOrLogic bool               `json:"useOrLogic"`
	Filters    []CollectionFilter `json:"filters"`
}

type CollectionFilter struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Value          string  `json:"value"`
	ValueName      string  `json:"valueName"`
	Currency       *string `json:"currency"`
	ComparisonType int     `json:"comparisonType"`
}

type CollectionListMeta struct {
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

// CollectionPosition is a stored position of a variant inside a collection
type CollectionPosition struct {
	CollectionID int64     `json:"collection_id"`
	ProductCode  string    `json:"product_code"`
	ColorCode    string    `json:"color_code"`
	Position     int       `json:"position"`
	UpdatedAt    time.Time `json:"updated_at"`
}
