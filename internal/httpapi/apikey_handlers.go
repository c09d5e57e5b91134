package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/basesub/subscriptions/internal/apikey"
	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/httpapi/middleware"
)

// ApiKeyHandler implements the createApiKey/listApiKeys/updateApiKey/
// deleteApiKey RPCs of spec §6.
type ApiKeyHandler struct {
	service *apikey.Service
}

// NewApiKeyHandler builds an ApiKeyHandler.
func NewApiKeyHandler(svc *apikey.Service) *ApiKeyHandler {
	return &ApiKeyHandler{service: svc}
}

type createApiKeyRequest struct {
	Name string `json:"name"`
}

// Create handles createApiKey.
//
// @Summary Create an API key
// @Tags apikeys
// @Accept json
// @Produce json
// @Param request body createApiKeyRequest false "Optional display name"
// @Success 200 {object} apikey.CreateResult
// @Router /api/v1/api-keys [post]
func (h *ApiKeyHandler) Create(c *gin.Context) {
	var req createApiKeyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidRequest, "invalid request body"))
			return
		}
	}

	result, err := h.service.Create(c.Request.Context(), middleware.AccountID(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List handles listApiKeys. The response DTO drops the key hash and
// only ever carries the preview.
//
// @Summary List API keys
// @Tags apikeys
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/v1/api-keys [get]
func (h *ApiKeyHandler) List(c *gin.Context) {
	keys, err := h.service.List(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	type keyDTO struct {
		ID         uuid.UUID `json:"id"`
		Name       string    `json:"name"`
		Start      string    `json:"start"`
		Enabled    bool      `json:"enabled"`
		CreatedAt  string    `json:"createdAt"`
		LastUsedAt *string   `json:"lastUsedAt,omitempty"`
	}
	dtos := make([]keyDTO, 0, len(keys))
	for _, k := range keys {
		dto := keyDTO{ID: k.ID, Name: k.Name, Start: k.KeyPreview, Enabled: k.Enabled, CreatedAt: k.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}
		if k.LastUsedAt != nil {
			s := k.LastUsedAt.Format("2006-01-02T15:04:05Z07:00")
			dto.LastUsedAt = &s
		}
		dtos = append(dtos, dto)
	}

	c.JSON(http.StatusOK, gin.H{"apiKeys": dtos})
}

type updateApiKeyRequest struct {
	Name    *string `json:"name"`
	Enabled *bool   `json:"enabled"`
}

// Update handles updateApiKey.
//
// @Summary Update an API key
// @Tags apikeys
// @Accept json
// @Produce json
// @Param keyId path string true "API key ID"
// @Param request body updateApiKeyRequest true "Fields to patch"
// @Success 200 {object} gin.H
// @Failure 404 {object} errorResponse
// @Router /api/v1/api-keys/{keyId} [patch]
func (h *ApiKeyHandler) Update(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidFormat, "invalid key id"))
		return
	}

	var req updateApiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidRequest, "invalid request body"))
		return
	}

	if err := h.service.Update(c.Request.Context(), middleware.AccountID(c), keyID, req.Name, req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete handles deleteApiKey.
//
// @Summary Delete an API key
// @Tags apikeys
// @Produce json
// @Param keyId path string true "API key ID"
// @Success 200 {object} gin.H
// @Failure 404 {object} errorResponse
// @Router /api/v1/api-keys/{keyId} [delete]
func (h *ApiKeyHandler) Delete(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidFormat, "invalid key id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.AccountID(c), keyID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
