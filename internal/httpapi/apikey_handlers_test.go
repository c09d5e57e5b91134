package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/apikey"
	"github.com/basesub/subscriptions/internal/store/storetest"
)

func newTestApiKeyRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := storetest.New()
	svc := apikey.New(st, zap.NewNop())
	h := NewApiKeyHandler(svc)

	r := gin.New()
	g := r.Group("/", withAccount(1))
	g.POST("/api-keys", h.Create)
	g.GET("/api-keys", h.List)
	g.PATCH("/api-keys/:keyId", h.Update)
	g.DELETE("/api-keys/:keyId", h.Delete)
	return r
}

func TestApiKeyHandlerCreateAndList(t *testing.T) {
	r := newTestApiKeyRouter()

	body, _ := json.Marshal(createApiKeyRequest{Name: "ci"})
	req := httptest.NewRequest(http.MethodPost, "/api-keys", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var created apikey.CreateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Secret)
	assert.Equal(t, "ci", created.Name)

	listReq := httptest.NewRequest(http.MethodGet, "/api-keys", nil)
	listW := httptest.NewRecorder()
	r.ServeHTTP(listW, listReq)

	require.Equal(t, http.StatusOK, listW.Code)
	var listResp struct {
		ApiKeys []map[string]any `json:"apiKeys"`
	}
	require.NoError(t, json.Unmarshal(listW.Body.Bytes(), &listResp))
	require.Len(t, listResp.ApiKeys, 1)
	assert.NotContains(t, listResp.ApiKeys[0], "keyHash")
	assert.NotContains(t, listResp.ApiKeys[0], "secret")
}

func TestApiKeyHandlerCreateWithoutBody(t *testing.T) {
	r := newTestApiKeyRouter()

	req := httptest.NewRequest(http.MethodPost, "/api-keys", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApiKeyHandlerUpdateUnknownKeyReturnsNotFound(t *testing.T) {
	r := newTestApiKeyRouter()

	body, _ := json.Marshal(updateApiKeyRequest{Name: stringPtr("renamed")})
	req := httptest.NewRequest(http.MethodPatch, "/api-keys/00000000-0000-0000-0000-000000000000", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApiKeyHandlerDeleteInvalidID(t *testing.T) {
	r := newTestApiKeyRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api-keys/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func stringPtr(s string) *string { return &s }
