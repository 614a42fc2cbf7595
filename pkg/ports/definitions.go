package ports

import (
	"context"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

// AuthAPI is the remote authentication boundary
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*domain.TokenGrant, error)
	// Refresh must return an error when the remote reports failure, whatever the HTTP status.
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenGrant, error)
}

// CatalogAPI is the remote product/collection/filter API plus the save boundary
type CatalogAPI interface {
	ListCollections(ctx context.Context, accessToken string, page, pageSize int) ([]domain.Collection, *domain.CollectionListMeta, error)
	FetchProductsPage(ctx context.Context, accessToken string, collectionID int64, filters domain.FilterSet, page, pageSize int) (*domain.ProductPage, error)
	FetchCollectionFilters(ctx context.Context, accessToken string, collectionID int64) ([]domain.Filter, error)
	SubmitOrder(ctx context.Context, accessToken string, req domain.SaveRequest) (*domain.SaveResult, error)
}

// TokenProvider hands out the current access token by value, refreshing it when needed
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// OrderRepository stores accepted orderings on the destination side
type OrderRepository interface {
	ApplyPositions(ctx context.Context, collectionID int64, entries []domain.PayloadEntry, record *domain.SaveRecord) error
	GetPositions(ctx context.Context, collectionID int64) ([]domain.CollectionPosition, error)
	ListSaves(ctx context.Context, collectionID int64, limit int) ([]domain.SaveRecord, error)
}

// OrderService defines the destination-side business logic for saves
type OrderService interface {
	SaveOrder(ctx context.Context, req domain.SaveRequest, actor string) (*domain.SaveResult, error)
	GetPositions(ctx context.Context, collectionID int64) ([]domain.CollectionPosition, error)
	ListSaves(ctx context.Context, collectionID int64, limit int) ([]domain.SaveRecord, error)
}

// Metrics receives counters from the services. Implementations must be safe for concurrent use.
type Metrics interface {
	TokenRefreshed(outcome string)
	StaleResponseDropped()
	SaveSubmitted(outcome string)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) TokenRefreshed(string) {}
func (NopMetrics) StaleResponseDropped() {}
func (NopMetrics) SaveSubmitted(string)  {}
