// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the vision service route registration

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVision/services/vision/classifier"
	"github.com/AleutianAI/AleutianVision/services/vision/handlers"
	"github.com/AleutianAI/AleutianVision/services/vision/middleware"
	"github.com/AleutianAI/AleutianVision/services/vision/observability"
	"github.com/AleutianAI/AleutianVision/services/vision/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubInvoker struct{}

func (stubInvoker) Classify(ctx context.Context, image []byte) (classifier.Prediction, error) {
	return classifier.Prediction{Label: "CAT", Confidence: 0.5}, nil
}

type emptyStore struct{}

func (emptyStore) Insert(ctx context.Context, rec *storage.Record) error { return nil }
func (emptyStore) ListRecent(ctx context.Context, ownerID string, limit int) ([]storage.Record, error) {
	return nil, nil
}
func (emptyStore) GetByID(ctx context.Context, id int64, ownerID string) (storage.Record, error) {
	return storage.Record{}, storage.ErrNotFound
}
func (emptyStore) Close() error { return nil }

func newRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.VisitorIdentity())
	router.SetHTMLTemplate(handlers.HistoryTemplate())
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	SetupRoutes(router, stubInvoker{}, emptyStore{}, metrics)
	return router
}

func TestSetupRoutes_Surface(t *testing.T) {
	router := newRouter()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/", http.StatusOK},
		{"GET", "/image/1", http.StatusNotFound},
		{"POST", "/upload", http.StatusBadRequest}, // no multipart body
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, err := http.NewRequest(tt.method, tt.path, nil)
			require.NoError(t, err)
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSetupRoutes_UnknownRoute(t *testing.T) {
	router := newRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
