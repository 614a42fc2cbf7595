package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/core/ordering"
	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

const (
	DefaultPageSize      = 36
	DefaultMaxPrimePages = 200
)

// PageView is the page currently shown to the operator, in working (dragged) order.
type PageView struct {
	CollectionID int64            `json:"collection_id"`
	Page         int              `json:"page"`
	PageSize     int              `json:"page_size"`
	Offset       int              `json:"offset"`
	TotalCount   int              `json:"total_count"`
	TotalPages   int              `json:"total_pages"`
	Filters      domain.FilterSet `json:"filters"`
	Products     []domain.Product `json:"products"`
}

// BasisStats summarises how much of the original order is known.
type BasisStats struct {
	Known    int  `json:"known"`
	Highest  int  `json:"highest"`
	Expected int  `json:"expected"`
	Complete bool `json:"complete"`
}

// SaveOutcome is the result of Save. Result is nil when nothing was submitted.
type SaveOutcome struct {
	Plan   *ordering.SavePlan `json:"plan"`
	Result *domain.SaveResult `json:"result,omitempty"`
}

type fetchTag struct {
	collectionID int64
	filters      string
	page         int
	pageSize     int
}

// EditSession holds the reordering state of one collection: the original order basis,
// the change ledger, the active filters and the page on screen. Fetches are tagged;
// a result is dropped when a fetch for a different page or filter set started after it.
type EditSession struct {
	catalog       ports.CatalogAPI
	tokens        ports.TokenProvider
	logger        *zap.Logger
	metrics       ports.Metrics
	pageSize      int
	maxPrimePages int
	policy        ordering.CollisionPolicy

	mu           sync.Mutex
	collectionID int64
	epoch        uint64
	closed       bool
	basis        *ordering.Basis
	ledger       *ordering.Ledger
	filters      domain.FilterSet
	latest       fetchTag
	saving       bool
	view         *PageView
	loaded       []domain.Product
}

type EditSessionOption func(*EditSession)

func WithPageSize(n int) EditSessionOption {
	return func(s *EditSession) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithCollisionPolicy(p ordering.CollisionPolicy) EditSessionOption {
	return func(s *EditSession) { s.policy = p }
}

func WithMaxPrimePages(n int) EditSessionOption {
	return func(s *EditSession) {
		if n > 0 {
			s.maxPrimePages = n
		}
	}
}

func WithSessionLogger(lg *zap.Logger) EditSessionOption {
	return func(s *EditSession) { s.logger = lg }
}

func WithSessionMetrics(m ports.Metrics) EditSessionOption {
	return func(s *EditSession) { s.metrics = m }
}

func NewEditSession(catalog ports.CatalogAPI, tokens ports.TokenProvider, collectionID int64, opts ...EditSessionOption) *EditSession {
	s := &EditSession{
		catalog:       catalog,
		tokens:        tokens,
		metrics:       ports.NopMetrics{},
		pageSize:      DefaultPageSize,
		maxPrimePages: DefaultMaxPrimePages,
		policy:        ordering.PolicyReject,
		collectionID:  collectionID,
		basis:         ordering.NewBasis(),
		ledger:        ordering.NewLedger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.Int64("collection_id", collectionID))
	return s
}

// LoadPage fetches a page of the collection with the active filters and makes it the
// current page. On failure the previous page, basis and ledger are left untouched.
func (s *EditSession) LoadPage(ctx context.Context, page int) (*PageView, error) {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	tag := fetchTag{
		collectionID: s.collectionID,
		filters:      s.filters.Canonical(),
		page:         page,
		pageSize:     s.pageSize,
	}
	filters := cloneFilters(s.filters)
	epoch := s.epoch
	s.latest = tag
	s.mu.Unlock()

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.catalog.FetchProductsPage(ctx, token, tag.collectionID, filters, page, tag.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.epoch != epoch {
		return nil, domain.ErrSessionClosed
	}
	if s.latest != tag {
		s.metrics.StaleResponseDropped()
		s.logger.Debug("dropping superseded page response", zap.Int("page", page))
		return nil, domain.ErrStaleResponse
	}
	if err != nil {
		s.logger.Warn("page fetch failed", zap.Int("page", page), zap.Error(err))
		return nil, err
	}

	s.applyPageLocked(result, filters, page)
	return s.viewLocked(), nil
}

func (s *EditSession) applyPageLocked(result *domain.ProductPage, filters domain.FilterSet, page int) {
	size := servedPageSize(result, s.pageSize)
	offset := domain.PageOffset(page, size)

	if filters.Empty() {
		s.basis.SetExpectedTotal(result.TotalCount)
		if conflicts := s.basis.RecordPage(result.Items, offset); len(conflicts) > 0 {
			s.logger.Warn("canonical position changed for known variants, keeping first seen",
				zap.Int("page", page), zap.Stringers("keys", conflicts))
		}
	}

	s.loaded = append([]domain.Product(nil), result.Items...)
	s.view = &PageView{
		CollectionID: s.collectionID,
		Page:         page,
		PageSize:     size,
		Offset:       offset,
		TotalCount:   result.TotalCount,
		TotalPages:   domain.ProductPage{TotalCount: result.TotalCount, PageSize: size}.TotalPages(),
		Filters:      filters,
		Products:     s.displayOrderLocked(result.Items, offset, filters.Empty()),
	}
}

// displayOrderLocked puts items carrying a pending change at their new position. On a
// filtered page only items with a known original position are rearranged, among the
// indexes they were served at.
func (s *EditSession) displayOrderLocked(items []domain.Product, offset int, unfiltered bool) []domain.Product {
	if !unfiltered {
		return s.filteredDisplayOrderLocked(items, offset)
	}

	type slot struct {
		product domain.Product
		order   int
	}
	slots := make([]slot, len(items))
	for i, item := range items {
		slots[i] = slot{product: item, order: s.ledger.DisplayOrder(item.Key(), offset+i+1)}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].order < slots[j].order })

	out := make([]domain.Product, len(slots))
	for i, sl := range slots {
		out[i] = sl.product
	}
	return out
}

func (s *EditSession) filteredDisplayOrderLocked(items []domain.Product, offset int) []domain.Product {
	out := append([]domain.Product(nil), items...)

	var indexes []int
	var known []domain.Product
	var moved []domain.OrderChange
	for i, item := range items {
		if _, ok := s.basis.Lookup(item.Key()); ok {
			indexes = append(indexes, i)
			known = append(known, item)
		} else if change, ok := s.ledger.Get(item.Key()); ok {
			moved = append(moved, change)
		}
	}
	sort.SliceStable(known, func(i, j int) bool {
		return s.effectiveOrderLocked(known[i].Key()) < s.effectiveOrderLocked(known[j].Key())
	})
	for n, i := range indexes {
		out[i] = known[n]
	}

	// gap items carry slots of this listing
	sort.Slice(moved, func(i, j int) bool { return moved[i].NewOrder < moved[j].NewOrder })
	for _, change := range moved {
		to := min(max(change.NewOrder-offset-1, 0), len(out)-1)
		out = ordering.MoveItem(out, indexOfProduct(out, change.Key), to)
	}
	return out
}

func (s *EditSession) effectiveOrderLocked(key domain.VariantKey) int {
	original, _ := s.basis.Lookup(key)
	return s.ledger.DisplayOrder(key, original)
}

// servedPageSize is the page size the catalog reports, or requested when it reports none.
func servedPageSize(result *domain.ProductPage, requested int) int {
	if result.PageSize > 0 {
		return result.PageSize
	}
	return requested
}

// PrimeBasis walks the unfiltered listing so that every variant has its canonical
// original position before filtered pages are edited.
func (s *EditSession) PrimeBasis(ctx context.Context) (BasisStats, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return BasisStats{}, domain.ErrSessionClosed
	}
	collectionID := s.collectionID
	epoch := s.epoch
	unfiltered := domain.FilterSet{UseOrLogic: s.filters.UseOrLogic}
	s.mu.Unlock()

	for page := 1; page <= s.maxPrimePages; page++ {
		token, err := s.tokens.AccessToken(ctx)
		if err != nil {
			return s.BasisStats(), err
		}
		result, err := s.catalog.FetchProductsPage(ctx, token, collectionID, unfiltered, page, s.pageSize)
		if err != nil {
			return s.BasisStats(), err
		}

		s.mu.Lock()
		if s.closed || s.epoch != epoch {
			s.mu.Unlock()
			return BasisStats{}, domain.ErrSessionClosed
		}
		offset := domain.PageOffset(page, servedPageSize(result, s.pageSize))
		s.basis.SetExpectedTotal(result.TotalCount)
		if conflicts := s.basis.RecordPage(result.Items, offset); len(conflicts) > 0 {
			s.logger.Warn("canonical position changed while priming, keeping first seen", zap.Stringers("keys", conflicts))
		}
		done := len(result.Items) == 0 || offset+len(result.Items) >= result.TotalCount
		s.mu.Unlock()

		if done {
			break
		}
	}

	stats := s.BasisStats()
	s.logger.Info("original order primed", zap.Int("known", stats.Known), zap.Int("expected", stats.Expected))
	return stats, nil
}

// LoadFilters returns the filter dimensions available for the collection.
func (s *EditSession) LoadFilters(ctx context.Context) ([]domain.Filter, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	collectionID := s.collectionID
	s.mu.Unlock()

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.catalog.FetchCollectionFilters(ctx, token, collectionID)
}

// AddFilter selects a filter value. Selecting the same id and value twice is a no-op.
// Callers reload page 1 after changing filters.
func (s *EditSession) AddFilter(f domain.AdditionalFilter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filters.Contains(f.ID, f.Value) {
		return false
	}
	s.filters.Filters = append(s.filters.Filters, f)
	return true
}

func (s *EditSession) RemoveFilter(id, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.filters.Filters[:0]
	removed := false
	for _, f := range s.filters.Filters {
		if f.ID == id && f.Value == value {
			removed = true
			continue
		}
		kept = append(kept, f)
	}
	s.filters.Filters = kept
	return removed
}

func (s *EditSession) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.Filters = nil
}

// SetUseOrLogic applies the collection-level OR/AND flag to the filter selection.
func (s *EditSession) SetUseOrLogic(or bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.UseOrLogic = or
}

func (s *EditSession) Filters() domain.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFilters(s.filters)
}

// DragEnd moves active to the slot of over on the current page and records the result.
func (s *EditSession) DragEnd(active, over domain.VariantKey) (ordering.ReorderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return ordering.ReorderResult{}, err
	}
	if active == over {
		return ordering.ReorderResult{}, nil
	}

	from := indexOfProduct(s.view.Products, active)
	to := indexOfProduct(s.view.Products, over)
	if from < 0 || to < 0 {
		return ordering.ReorderResult{}, fmt.Errorf("%w: drag between %s and %s", domain.ErrNotPermutation, active, over)
	}

	moved := ordering.MoveItem(s.view.Products, from, to)
	return s.reconcileLocked(moved)
}

// ApplyPageOrder replaces the working order of the current page with keys.
func (s *EditSession) ApplyPageOrder(keys []domain.VariantKey) (ordering.ReorderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return ordering.ReorderResult{}, err
	}

	byKey := make(map[domain.VariantKey]domain.Product, len(s.loaded))
	for _, p := range s.loaded {
		byKey[p.Key()] = p
	}
	reordered := make([]domain.Product, 0, len(keys))
	for _, k := range keys {
		p, ok := byKey[k]
		if !ok {
			return ordering.ReorderResult{}, fmt.Errorf("%w: unknown key %s", domain.ErrNotPermutation, k)
		}
		reordered = append(reordered, p)
	}
	return s.reconcileLocked(reordered)
}

func (s *EditSession) reconcileLocked(working []domain.Product) (ordering.ReorderResult, error) {
	apply := ordering.ApplyPageOrder
	if !s.view.Filters.Empty() {
		apply = ordering.ApplyFilteredPageOrder
	}
	res, err := apply(s.basis, s.ledger, s.view.Offset, productKeys(s.loaded), productKeys(working))
	if err != nil {
		return res, err
	}
	s.view.Products = working

	if len(res.Gaps) > 0 {
		s.logger.Warn("reordered variants without a known original position",
			zap.Int("page", s.view.Page), zap.Stringers("keys", res.Gaps))
	}
	return res, nil
}

func (s *EditSession) editableLocked() error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.view == nil {
		return domain.ErrNoPageLoaded
	}
	return nil
}

// View returns a copy of the current page, or nil before the first load.
func (s *EditSession) View() *PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *EditSession) viewLocked() *PageView {
	if s.view == nil {
		return nil
	}
	v := *s.view
	v.Products = append([]domain.Product(nil), s.view.Products...)
	v.Filters = cloneFilters(s.view.Filters)
	return &v
}

func (s *EditSession) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.HasChanges()
}

// Changes returns the pending changes ordered by new position.
func (s *EditSession) Changes() []domain.OrderChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Sorted()
}

func (s *EditSession) DisplayOrder(key domain.VariantKey, fallback int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DisplayOrder(key, fallback)
}

func (s *EditSession) BasisStats() BasisStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BasisStats{
		Known:    s.basis.Len(),
		Highest:  s.basis.TotalKnownItems(),
		Expected: s.basis.ExpectedTotal(),
		Complete: s.basis.Complete(),
	}
}

// Preview derives the payload Save would submit, without submitting it.
func (s *EditSession) Preview() (*ordering.SavePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ordering.Plan(s.ledger, s.basis, s.policy)
}

// Save submits the pending changes. The ledger is cleared only when the save endpoint
// accepts the order; on any failure it is kept so the operator can retry.
func (s *EditSession) Save(ctx context.Context) (*SaveOutcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	if s.saving {
		s.mu.Unlock()
		return nil, domain.ErrSaveInProgress
	}
	plan, err := ordering.Plan(s.ledger, s.basis, s.policy)
	if err != nil {
		s.mu.Unlock()
		s.metrics.SaveSubmitted("collision")
		s.logger.Warn("save blocked", zap.Error(err))
		return nil, err
	}
	if len(plan.Entries) == 0 {
		s.mu.Unlock()
		return &SaveOutcome{Plan: plan}, nil
	}
	submitted := s.ledger.All()
	collectionID := s.collectionID
	epoch := s.epoch
	s.saving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	for _, w := range plan.Warnings {
		s.logger.Warn("saving with warning", zap.String("kind", string(w.Kind)), zap.String("detail", w.Message))
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return &SaveOutcome{Plan: plan}, err
	}
	result, err := s.catalog.SubmitOrder(ctx, token, domain.SaveRequest{CollectionID: collectionID, Products: plan.Entries})
	if err != nil {
		outcome := "failure"
		if errors.Is(err, domain.ErrSaveRejected) {
			outcome = "rejected"
		}
		s.metrics.SaveSubmitted(outcome)
		s.logger.Warn("save failed, pending changes kept", zap.Error(err))
		return &SaveOutcome{Plan: plan}, err
	}
	s.metrics.SaveSubmitted("success")
	s.logger.Info("order saved", zap.Int("products", len(plan.Entries)))

	s.mu.Lock()
	if !s.closed && s.epoch == epoch {
		s.settleLocked(submitted)
	}
	s.mu.Unlock()
	return &SaveOutcome{Plan: plan, Result: result}, nil
}

// settleLocked drops the submitted changes. Once nothing is pending the displayed page
// becomes the new baseline.
func (s *EditSession) settleLocked(submitted []domain.OrderChange) {
	for _, change := range submitted {
		if current, ok := s.ledger.Get(change.Key); ok && current == change {
			s.ledger.RemoveMany(change.Key)
		}
	}
	if s.ledger.HasChanges() {
		return
	}

	s.basis.Reset()
	if s.view == nil {
		s.loaded = nil
		return
	}
	s.loaded = append([]domain.Product(nil), s.view.Products...)
	if s.view.Filters.Empty() {
		s.basis.SetExpectedTotal(s.view.TotalCount)
		s.basis.RecordPage(s.loaded, s.view.Offset)
	}
}

// Discard drops every pending change and restores the page as served.
func (s *EditSession) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Clear()
	if s.view != nil {
		s.view.Products = append([]domain.Product(nil), s.loaded...)
	}
}

// SwitchCollection starts over on another collection. Responses still in flight for the
// previous collection are ignored.
func (s *EditSession) SwitchCollection(collectionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectionID = collectionID
	s.epoch++
	s.closed = false
	s.basis.Reset()
	s.ledger.Clear()
	s.filters = domain.FilterSet{}
	s.latest = fetchTag{}
	s.view = nil
	s.loaded = nil
}

// Close abandons the session; pending responses are ignored when they arrive.
func (s *EditSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.epoch++
}

func (s *EditSession) CollectionID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectionID
}

func productKeys(products []domain.Product) []domain.VariantKey {
	keys := make([]domain.VariantKey, len(products))
	for i, p := range products {
		keys[i] = p.Key()
	}
	return keys
}

func indexOfProduct(products []domain.Product, key domain.VariantKey) int {
	for i, p := range products {
		if p.Key() == key {
			return i
		}
	}
	return -1
}

func cloneFilters(f domain.FilterSet) domain.FilterSet {
	return domain.FilterSet{
		UseOrLogic: f.UseOrLogic,
		Filters:    append([]domain.AdditionalFilter(nil), f.Filters...),
	}
}
