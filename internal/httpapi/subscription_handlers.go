package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/httpapi/middleware"
	"github.com/basesub/subscriptions/internal/service"
	"github.com/basesub/subscriptions/internal/store"
)

// SubscriptionHandler implements the subscription-lifecycle RPCs of
// spec §6: createSubscription, revokeSubscription, listSubscriptions,
// getSubscription.
type SubscriptionHandler struct {
	service *service.Service
	store   store.Store
}

// NewSubscriptionHandler builds a SubscriptionHandler.
func NewSubscriptionHandler(svc *service.Service, st store.Store) *SubscriptionHandler {
	return &SubscriptionHandler{service: svc, store: st}
}

type createSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" binding:"required"`
	Provider       string `json:"provider" binding:"required"`
	Testnet        bool   `json:"testnet"`
}

// Create handles createSubscription (spec §6): the beneficiary is
// always the authenticated account, never a caller-supplied value.
//
// @Summary Create a subscription
// @Description Registers an existing on-chain spend permission and begins the activation charge in the background
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body createSubscriptionRequest true "Subscription to register"
// @Success 200 {object} gin.H
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/subscriptions [post]
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidRequest, "invalid request body"))
		return
	}

	subID, ok := domain.ParseSubscriptionID(req.SubscriptionID)
	if !ok {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidFormat, "invalid subscription id"))
		return
	}

	result, err := h.service.CreateSubscription(c.Request.Context(), service.CreateSubscriptionInput{
		AccountID:      middleware.AccountID(c),
		SubscriptionID: subID,
		Provider:       req.Provider,
		Testnet:        req.Testnet,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      result.SubscriptionStatus,
		"orderId":     result.OrderID,
		"orderNumber": result.OrderNumber,
	})
}

// Revoke handles revokeSubscription (spec §6).
//
// @Summary Revoke a subscription
// @Tags subscriptions
// @Produce json
// @Param subscriptionId path string true "Subscription ID"
// @Success 200 {object} gin.H
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/subscriptions/{subscriptionId}/revoke [post]
func (h *SubscriptionHandler) Revoke(c *gin.Context) {
	subID, ok := domain.ParseSubscriptionID(c.Param("subscriptionId"))
	if !ok {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidFormat, "invalid subscription id"))
		return
	}

	err := h.service.RevokeSubscription(c.Request.Context(), service.RevokeSubscriptionInput{
		AccountID:      middleware.AccountID(c),
		SubscriptionID: subID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List handles listSubscriptions (spec §6).
//
// @Summary List subscriptions
// @Tags subscriptions
// @Produce json
// @Param testnet query bool false "Filter by testnet flag"
// @Success 200 {object} gin.H
// @Router /api/v1/subscriptions [get]
func (h *SubscriptionHandler) List(c *gin.Context) {
	var testnet *bool
	if v := c.Query("testnet"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidRequest, "testnet must be a boolean"))
			return
		}
		testnet = &b
	}

	subs, err := h.store.ListSubscriptions(c.Request.Context(), middleware.AccountID(c), testnet)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// Get handles getSubscription (spec §6): 403 on foreign-account
// access, 404 if the subscription does not exist at all.
//
// @Summary Get a subscription and its orders
// @Tags subscriptions
// @Produce json
// @Param subscriptionId path string true "Subscription ID"
// @Success 200 {object} gin.H
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/subscriptions/{subscriptionId} [get]
func (h *SubscriptionHandler) Get(c *gin.Context) {
	subID, ok := domain.ParseSubscriptionID(c.Param("subscriptionId"))
	if !ok {
		respondError(c, domain.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidFormat, "invalid subscription id"))
		return
	}

	sub, err := h.store.GetSubscription(c.Request.Context(), subID)
	if err != nil {
		if se, ok := err.(*store.StorageError); ok && se.Kind == store.NotFound {
			respondError(c, domain.NewHTTPError(http.StatusNotFound, domain.ErrNotFound, "subscription not found"))
			return
		}
		respondError(c, err)
		return
	}
	if sub.AccountID != middleware.AccountID(c) {
		respondError(c, domain.NewHTTPError(http.StatusForbidden, domain.ErrForbidden, "subscription belongs to another account"))
		return
	}

	orders, err := h.store.GetSubscriptionOrders(c.Request.Context(), subID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub, "orders": orders})
}
