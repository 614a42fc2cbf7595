package services

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

const (
	defaultSaveHistoryLimit = 20
	maxSaveHistoryLimit     = 200
)

// OrderService is the receiving end of the save boundary: it validates a submitted
// ordering and persists it together with a save record.
type OrderService struct {
	repo   ports.OrderRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewOrderService(repo ports.OrderRepository, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{repo: repo, logger: logger, now: time.Now}
}

func (s *OrderService) SaveOrder(ctx context.Context, req domain.SaveRequest, actor string) (*domain.SaveResult, error) {
	if err := ValidateSaveRequest(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &domain.SaveRecord{
		ID:           ulid.Make().String(),
		CollectionID: req.CollectionID,
		Actor:        actor,
		ProductCount: len(req.Products),
		CreatedAt:    now,
	}
	if err := s.repo.ApplyPositions(ctx, req.CollectionID, req.Products, record); err != nil {
		return nil, err
	}

	s.logger.Info("collection order saved",
		zap.Int64("collection_id", req.CollectionID),
		zap.Int("product_count", len(req.Products)),
		zap.String("actor", actor),
		zap.String("save_id", record.ID))

	return &domain.SaveResult{
		CollectionID:         req.CollectionID,
		UpdatedProductsCount: len(req.Products),
		UpdatedAt:            now,
		SaveID:               record.ID,
	}, nil
}

func (s *OrderService) GetPositions(ctx context.Context, collectionID int64) ([]domain.CollectionPosition, error) {
	return s.repo.GetPositions(ctx, collectionID)
}

func (s *OrderService) ListSaves(ctx context.Context, collectionID int64, limit int) ([]domain.SaveRecord, error) {
	if limit <= 0 {
		limit = defaultSaveHistoryLimit
	}
	if limit > maxSaveHistoryLimit {
		limit = maxSaveHistoryLimit
	}
	return s.repo.ListSaves(ctx, collectionID, limit)
}

// ValidateSaveRequest rejects payloads that could not have come out of payload derivation:
// empty identities, non-positive or repeated positions and repeated variants.
func ValidateSaveRequest(req domain.SaveRequest) error {
	if req.CollectionID <= 0 {
		return fmt.Errorf("%w: collectionId is required", domain.ErrInvalidPayload)
	}
	if req.Products == nil {
		return fmt.Errorf("%w: products is required", domain.ErrInvalidPayload)
	}

	positions := make(map[int]domain.VariantKey, len(req.Products))
	variants := make(map[domain.VariantKey]struct{}, len(req.Products))
	for _, p := range req.Products {
		if p.ProductCode == "" || p.ColorCode == "" {
			return fmt.Errorf("%w: productCode and colorCode are required", domain.ErrInvalidPayload)
		}
		if p.Position <= 0 {
			return fmt.Errorf("%w: position of %s must be positive", domain.ErrInvalidPayload, p.Key())
		}
		if other, dup := positions[p.Position]; dup {
			return fmt.Errorf("%w: position %d used by %s and %s", domain.ErrInvalidPayload, p.Position, other, p.Key())
		}
		if _, dup := variants[p.Key()]; dup {
			return fmt.Errorf("%w: %s listed twice", domain.ErrInvalidPayload, p.Key())
		}
		positions[p.Position] = p.Key()
		variants[p.Key()] = struct{}{}
	}
	return nil
}

var _ ports.OrderService = (*OrderService)(nil)
