package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/validation"
)

// SubscriptionsResponse lists the pending registry entries
type SubscriptionsResponse struct {
	Count         int                   `json:"count"`
	Subscriptions []models.Subscription `json:"subscriptions"`
}

// WatchersResponse lists the armed token listeners
type WatchersResponse struct {
	Count    int                  `json:"count"`
	Watchers []models.WatcherInfo `json:"watchers"`
}

func (s *HTTPServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// listSubscriptions is a handler for the /api/v1/subscriptions endpoint.
func (s *HTTPServer) listSubscriptions(c *gin.Context) {
	subs, err := s.liqnotify.Subscriptions()
	if err != nil {
		s.logger.Error("Failed to load subscriptions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load subscriptions",
		})
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	c.JSON(http.StatusOK, SubscriptionsResponse{Count: len(subs), Subscriptions: subs})
}

// getSubscription is a handler for the /api/v1/subscriptions/:token endpoint.
func (s *HTTPServer) getSubscription(c *gin.Context) {
	token := c.Param("token")
	if err := validation.ValidateAddress(s.chain, token); err != nil {
		s.logger.Debug("Invalid token address", "error", err, "token", token)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid token address: " + err.Error(),
		})
		return
	}

	sub, err := s.liqnotify.Subscription(token)
	if errors.Is(err, models.ErrSubscriptionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Token is not being tracked",
		})
		return
	}
	if err != nil {
		s.logger.Error("Failed to load subscription", "error", err, "token", token)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load subscription",
		})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// listWatchers is a handler for the /api/v1/watchers endpoint.
func (s *HTTPServer) listWatchers(c *gin.Context) {
	watchers := s.liqnotify.Watchers()
	c.JSON(http.StatusOK, WatchersResponse{Count: len(watchers), Watchers: watchers})
}
