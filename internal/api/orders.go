package api

import (
	"errors"
	"net/http"
	"strconv"

	"storefront-service/internal/service"
	"storefront-service/internal/store"

	"github.com/gin-gonic/gin"
)

// listOrders lists orders for the admin views
func (h *Handler) listOrders(c *gin.Context) {
	f := store.OrderFilter{
		Status: c.Query("status"),
	}
	f.CustomerID, _ = strconv.ParseInt(c.Query("customer_id"), 10, 64)
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	orders, err := h.admin.ListOrders(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder retrieves an order with its items
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.admin.GetOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus applies a single status transition
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.admin.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to update order status", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type bulkActionRequest struct {
	Action   string  `json:"action" binding:"required"`
	OrderIDs []int64 `json:"order_ids" binding:"required"`
}

// bulkOrderAction applies an action to each selected order
func (h *Handler) bulkOrderAction(c *gin.Context) {
	var req bulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.admin.BulkAction(c.Request.Context(), req.Action, req.OrderIDs)
	if err != nil {
		if errors.Is(err, service.ErrUnknownBulkAction) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Bulk action failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
