package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/geojournal/internal/client/offline"
	"github.com/iudanet/geojournal/pkg/api"
)

type stubWorker struct {
	err     error
	buckets []offline.BucketInfo
	phase   offline.Phase
}

func (s *stubWorker) Phase() offline.Phase { return s.phase }

func (s *stubWorker) Buckets(ctx context.Context) ([]offline.BucketInfo, error) {
	return s.buckets, s.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		worker         *stubWorker
		name           string
		expectedStatus int
		expected       api.HealthResponse
	}{
		{
			name: "active",
			worker: &stubWorker{
				phase:   offline.PhaseActive,
				buckets: []offline.BucketInfo{{Name: "geojournal-static-v1"}, {Name: "geojournal-dynamic-v1"}},
			},
			expectedStatus: http.StatusOK,
			expected: api.HealthResponse{
				Status:  "ok",
				Version: "1.2.3",
				Phase:   "active",
				Caches:  []string{"geojournal-static-v1", "geojournal-dynamic-v1"},
			},
		},
		{
			name:           "redundant",
			worker:         &stubWorker{phase: offline.PhaseRedundant},
			expectedStatus: http.StatusServiceUnavailable,
			expected: api.HealthResponse{
				Status:  "degraded",
				Version: "1.2.3",
				Phase:   "redundant",
				Caches:  []string{},
			},
		},
		{
			name:           "buckets unavailable",
			worker:         &stubWorker{phase: offline.PhaseActive, err: errors.New("db closed")},
			expectedStatus: http.StatusServiceUnavailable,
			expected: api.HealthResponse{
				Status:  "degraded",
				Version: "1.2.3",
				Phase:   "active",
				Caches:  []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.worker, "1.2.3", setupTestLogger())

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp api.HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.expected, resp)
		})
	}
}
