package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

const maxSaveBodyBytes = 1 << 20

type OrderHandler struct {
	service ports.OrderService
	logger  *zap.Logger
	metrics ports.Metrics
}

func NewOrderHandler(service ports.OrderService, logger *zap.Logger, metrics ports.Metrics) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &OrderHandler{service: service, logger: logger, metrics: metrics}
}

// SaveOrder stores a submitted collection ordering
func (h *OrderHandler) SaveOrder(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := collectionIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid collection ID")
		return
	}

	var req domain.SaveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSaveBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.SaveSubmitted("invalid")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CollectionID != collectionID {
		h.metrics.SaveSubmitted("invalid")
		writeError(w, http.StatusBadRequest, fmt.Sprintf("collectionId %d does not match path id %d", req.CollectionID, collectionID))
		return
	}

	actor := ActorFromContext(r.Context())
	result, err := h.service.SaveOrder(r.Context(), req, actor)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) {
			h.metrics.SaveSubmitted("invalid")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.metrics.SaveSubmitted("error")
		h.logger.Error("save order failed",
			zap.Int64("collection_id", collectionID),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.metrics.SaveSubmitted("stored")
	writeOK(w, result)
}

// GetPositions lists the stored positions of a collection
func (h *OrderHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := collectionIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid collection ID")
		return
	}

	positions, err := h.service.GetPositions(r.Context(), collectionID)
	if err != nil {
		h.logger.Error("get positions failed", zap.Int64("collection_id", collectionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeOK(w, positions)
}

// ListSaves lists the save history of a collection, newest first
func (h *OrderHandler) ListSaves(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := collectionIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid collection ID")
		return
	}

	var err error
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
	}

	saves, err := h.service.ListSaves(r.Context(), collectionID, limit)
	if err != nil {
		h.logger.Error("list saves failed", zap.Int64("collection_id", collectionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeOK(w, saves)
}

func collectionIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
