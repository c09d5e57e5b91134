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

	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/store/storetest"
	"github.com/basesub/subscriptions/internal/webhook"
)

func newTestWebhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := storetest.New()
	svc := webhook.NewService(st, config.StageLocal, zap.NewNop())
	h := NewWebhookHandler(svc)

	r := gin.New()
	g := r.Group("/", withAccount(1))
	g.POST("/webhooks", h.Create)
	g.GET("/webhooks", h.Get)
	g.PATCH("/webhooks", h.UpdateURL)
	g.POST("/webhooks/rotate-secret", h.RotateSecret)
	g.DELETE("/webhooks", h.Delete)
	return r
}

func TestWebhookHandlerCreateGetNeverLeaksSecretTwice(t *testing.T) {
	r := newTestWebhookRouter()

	body, _ := json.Marshal(createWebhookRequest{URL: "http://merchant.example/hooks"})
	createReq := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	createReq.Header.Set("Content-Type", "application/json")
	createW := httptest.NewRecorder()
	r.ServeHTTP(createW, createReq)

	require.Equal(t, http.StatusOK, createW.Code)
	var created webhook.CreateResult
	require.NoError(t, json.Unmarshal(createW.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Secret)

	getReq := httptest.NewRequest(http.MethodGet, "/webhooks", nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)

	require.Equal(t, http.StatusOK, getW.Code)
	var getResp map[string]any
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &getResp))
	assert.NotContains(t, getResp, "secret")
	assert.Contains(t, getResp, "secretPreview")
}

func TestWebhookHandlerCreateRejectsInvalidURL(t *testing.T) {
	r := newTestWebhookRouter()

	body, _ := json.Marshal(createWebhookRequest{URL: "not-a-url"})
	req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandlerGetNotFoundBeforeCreate(t *testing.T) {
	r := newTestWebhookRouter()

	req := httptest.NewRequest(http.MethodGet, "/webhooks", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandlerRotateSecretChangesSecret(t *testing.T) {
	r := newTestWebhookRouter()

	body, _ := json.Marshal(createWebhookRequest{URL: "http://merchant.example/hooks"})
	createReq := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	createReq.Header.Set("Content-Type", "application/json")
	createW := httptest.NewRecorder()
	r.ServeHTTP(createW, createReq)
	require.Equal(t, http.StatusOK, createW.Code)
	var created webhook.CreateResult
	require.NoError(t, json.Unmarshal(createW.Body.Bytes(), &created))

	rotateReq := httptest.NewRequest(http.MethodPost, "/webhooks/rotate-secret", nil)
	rotateW := httptest.NewRecorder()
	r.ServeHTTP(rotateW, rotateReq)

	require.Equal(t, http.StatusOK, rotateW.Code)
	var rotateResp struct {
		Secret string `json:"secret"`
	}
	require.NoError(t, json.Unmarshal(rotateW.Body.Bytes(), &rotateResp))
	assert.NotEqual(t, created.Secret, rotateResp.Secret)
}

func TestWebhookHandlerDelete(t *testing.T) {
	r := newTestWebhookRouter()

	body, _ := json.Marshal(createWebhookRequest{URL: "http://merchant.example/hooks"})
	createReq := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	createReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), createReq)

	delReq := httptest.NewRequest(http.MethodDelete, "/webhooks", nil)
	delW := httptest.NewRecorder()
	r.ServeHTTP(delW, delReq)
	assert.Equal(t, http.StatusOK, delW.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/webhooks", nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)
	assert.Equal(t, http.StatusNotFound, getW.Code)
}
