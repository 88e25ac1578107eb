package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/geojournal/internal/client/offline"
	"github.com/iudanet/geojournal/pkg/api"
)

// HealthPath is served by the proxy itself instead of being forwarded
const HealthPath = "/__geojournal/health"

// WorkerStatus is the part of the worker the health check reads
type WorkerStatus interface {
	Phase() offline.Phase
	Buckets(ctx context.Context) ([]offline.BucketInfo, error)
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	worker  WorkerStatus
	logger  *slog.Logger
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(worker WorkerStatus, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		worker:  worker,
		version: version,
		logger:  logger,
	}
}

// ServeHTTP отвечает 200, если воркер активен, иначе 503
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Phase:   h.worker.Phase().String(),
		Caches:  []string{},
	}
	status := http.StatusOK

	buckets, err := h.worker.Buckets(r.Context())
	if err != nil {
		h.logger.Warn("failed to list buckets", "error", err)
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	for _, b := range buckets {
		resp.Caches = append(resp.Caches, b.Name)
	}
	if h.worker.Phase() != offline.PhaseActive {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
