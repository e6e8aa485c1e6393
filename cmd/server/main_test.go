package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/triepod-ai/memory-graph/internal/graph"
	"github.com/triepod-ai/memory-graph/pkg/config"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	manager := graph.NewManager(&config.Config{
		MemoryFilePath: filepath.Join(t.TempDir(), "memory.jsonl"),
	})
	return newRouter(manager, zap.NewNop())
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "ok", response["status"])
}

func TestCreateAndSearchEntities(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/memory/entities", gin.H{
		"entities": []gin.H{
			{"name": "alpha", "entityType": "service", "observations": []string{"runs on port 80"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/api/memory/search?q=alpha", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result graph.KnowledgeGraph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Entities, 1)
}

func TestSearchRequiresQuery(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "GET", "/api/memory/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddObservations_MissingEntityIs404(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/memory/observations", gin.H{
		"observations": []gin.H{{"entityName": "nobody", "contents": []string{"o1"}}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBoundedSearch_ValidatesCaps(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/memory/search/relationships", gin.H{
		"query":       "x",
		"maxEntities": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/memory/search/relationships", gin.H{
		"query": "x",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "GET", "/api/memory/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status graph.StorageStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, graph.BackendFile, status.CurrentBackend)
	assert.False(t, status.NeoConfigured)
	assert.Equal(t, graph.HealthUnavailable, status.ConnectionHealth)
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "GET", "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestDeleteEntitiesEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/memory/entities", gin.H{
		"entities": []gin.H{
			{"name": "A", "entityType": "t"},
			{"name": "B", "entityType": "t"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "POST", "/api/memory/relations", gin.H{
		"relations": []gin.H{{"from": "A", "to": "B", "relationType": "knows"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "DELETE", "/api/memory/entities", gin.H{"names": []string{"A"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/api/memory/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result graph.KnowledgeGraph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "B", result.Entities[0].Name)
	assert.Empty(t, result.Relations)
}
