package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/httpapi/middleware"
	"github.com/basesub/subscriptions/internal/webhook"
)

// WebhookHandler implements the createWebhook/getWebhook/
// updateWebhookUrl/rotateWebhookSecret/deleteWebhook RPCs of spec §6.
type WebhookHandler struct {
	service *webhook.Service
}

// NewWebhookHandler builds a WebhookHandler.
func NewWebhookHandler(svc *webhook.Service) *WebhookHandler {
	return &WebhookHandler{service: svc}
}

type createWebhookRequest struct {
	URL string `json:"url" binding:"required"`
}

// Create handles createWebhook. The signing secret is only ever
// present in this response and in rotateWebhookSecret's.
//
// @Summary Register a webhook destination
// @Tags webhooks
// @Accept json
// @Produce json
// @Param request body createWebhookRequest true "Destination URL"
// @Success 200 {object} webhook.CreateResult
// @Failure 400 {object} errorResponse
// @Router /api/v1/webhooks [post]
func (h *WebhookHandler) Create(c *gin.Context) {
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidRequest, "invalid request body"))
		return
	}

	result, err := h.service.Create(c.Request.Context(), middleware.AccountID(c), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get handles getWebhook. The signing secret is never included here;
// only createWebhook and rotateWebhookSecret disclose it.
//
// @Summary Get the account's webhook
// @Tags webhooks
// @Produce json
// @Success 200 {object} gin.H
// @Failure 404 {object} errorResponse
// @Router /api/v1/webhooks [get]
func (h *WebhookHandler) Get(c *gin.Context) {
	wh, err := h.service.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":           wh.URL,
		"enabled":       wh.Enabled,
		"secretPreview": webhook.SecretPreview(wh.Secret),
		"createdAt":     wh.CreatedAt,
	})
}

type updateWebhookURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// UpdateURL handles updateWebhookUrl.
//
// @Summary Update the webhook destination URL
// @Tags webhooks
// @Accept json
// @Produce json
// @Param request body updateWebhookURLRequest true "New destination URL"
// @Success 200 {object} gin.H
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/webhooks [patch]
func (h *WebhookHandler) UpdateURL(c *gin.Context) {
	var req updateWebhookURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidRequest, "invalid request body"))
		return
	}

	if err := h.service.UpdateURL(c.Request.Context(), middleware.AccountID(c), req.URL); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RotateSecret handles rotateWebhookSecret.
//
// @Summary Rotate the webhook signing secret
// @Tags webhooks
// @Produce json
// @Success 200 {object} gin.H
// @Failure 404 {object} errorResponse
// @Router /api/v1/webhooks/rotate-secret [post]
func (h *WebhookHandler) RotateSecret(c *gin.Context) {
	secret, err := h.service.RotateSecret(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret})
}

// Delete handles deleteWebhook.
//
// @Summary Remove the webhook destination
// @Tags webhooks
// @Produce json
// @Success 200 {object} gin.H
// @Failure 404 {object} errorResponse
// @Router /api/v1/webhooks [delete]
func (h *WebhookHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.AccountID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
