package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	carts     *cart.Service
	checkout  *service.CheckoutService
	customers *service.CustomerService
	profiles  *service.ProfileService
	admin     *service.AdminService
	catalog   *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	carts *cart.Service,
	checkout *service.CheckoutService,
	customers *service.CustomerService,
	profiles *service.ProfileService,
	admin *service.AdminService,
	catalog *store.Store,
) *Handler {
	return &Handler{
		carts:     carts,
		checkout:  checkout,
		customers: customers,
		profiles:  profiles,
		admin:     admin,
		catalog:   catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/cart", h.getCart)
		api.POST("/cart/items", h.addCartItem)
		api.PATCH("/cart/items/:productID", h.updateCartItem)
		api.DELETE("/cart/items/:productID", h.removeCartItem)
		api.DELETE("/cart", h.clearCart)

		api.POST("/checkout", h.doCheckout)
		api.POST("/payments/process", h.processPayment)
		api.GET("/payments/:orderNumber/status", h.paymentStatus)

		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.POST("/products", h.createProduct)
		api.PUT("/products/:id", h.updateProduct)
		api.DELETE("/products/:id", h.deleteProduct)

		api.POST("/customers", h.registerCustomer)
		api.GET("/customers", h.listCustomers)
		api.GET("/customers/:id", h.getCustomer)
		api.PUT("/customers/:id", h.updateCustomer)
		api.DELETE("/customers/:id", h.deleteCustomer)
		api.POST("/customers/:id/password-reset", h.requestPasswordReset)
		api.POST("/customers/:id/activation", h.requestActivation)

		api.GET("/customers/:id/addresses", h.listAddresses)
		api.POST("/customers/:id/addresses", h.addAddress)
		api.PUT("/customers/:id/addresses/:addressID", h.updateAddress)
		api.PUT("/customers/:id/addresses/:addressID/default", h.setDefaultAddress)
		api.DELETE("/customers/:id/addresses/:addressID", h.deleteAddress)

		api.GET("/customers/:id/payment-methods", h.listPaymentMethods)
		api.POST("/customers/:id/payment-methods", h.addPaymentMethod)
		api.PUT("/customers/:id/payment-methods/:methodID/default", h.setDefaultPaymentMethod)
		api.DELETE("/customers/:id/payment-methods/:methodID", h.removePaymentMethod)

		api.GET("/orders", h.listOrders)
		api.GET("/orders/:id", h.getOrder)
		api.PATCH("/orders/:id/status", h.updateOrderStatus)
		api.POST("/orders/bulk", h.bulkOrderAction)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.catalog.GetDB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// sessionID reads the cart session header
func sessionID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Session-ID")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return "", false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// getCart returns the session cart with computed totals
func (h *Handler) getCart(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	crt, totals, err := h.carts.Totals(c.Request.Context(), sid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": crt, "totals": totals})
}

type cartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// addCartItem adds a product to the session cart
func (h *Handler) addCartItem(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	crt, err := h.carts.AddItem(c.Request.Context(), sid, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrProductUnavailable), errors.Is(err, cart.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": crt, "totals": crt.Totals(h.carts.Pricing())})
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem changes a line's quantity; zero removes it
func (h *Handler) updateCartItem(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}

	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	crt, err := h.carts.UpdateQuantity(c.Request.Context(), sid, productID, req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": crt, "totals": crt.Totals(h.carts.Pricing())})
}

// removeCartItem drops a line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}

	crt, err := h.carts.RemoveItem(c.Request.Context(), sid, productID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": crt, "totals": crt.Totals(h.carts.Pricing())})
}

// clearCart drops the whole cart
func (h *Handler) clearCart(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), sid); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// doCheckout drives a cart to a paid order
func (h *Handler) doCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.Checkout(c.Request.Context(), &req)
	if err != nil {
		h.checkoutError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// processPayment completes a deferred capture (PayPal approval, wallet)
func (h *Handler) processPayment(c *gin.Context) {
	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.SessionID == "" {
		req.SessionID = c.GetHeader("X-Session-ID")
	}

	resp, err := h.checkout.ProcessPayment(c.Request.Context(), &req)
	if err != nil {
		h.checkoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// paymentStatus reports where a deferred payment stands, polled by the
// storefront after the approval popup closes
func (h *Handler) paymentStatus(c *gin.Context) {
	resp, err := h.checkout.PaymentStatus(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// checkoutError maps orchestration failures onto status codes
func (h *Handler) checkoutError(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation failed", "fields": verr.Fields})
		return
	}

	var declined *payment.DeclinedError
	if errors.As(err, &declined) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "Payment declined",
			"code":    declined.Code,
			"details": declined.Message,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrCartEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCheckoutInProgress), errors.Is(err, service.ErrOrderNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Checkout failed", "details": err.Error()})
	}
}

// listProducts lists catalog items; storefront callers see active/visible
func (h *Handler) listProducts(c *gin.Context) {
	f := store.ProductFilter{
		Status:     c.Query("status"),
		Visibility: c.Query("visibility"),
		Category:   c.Query("category"),
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	products, err := h.catalog.ListProducts(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list products", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct retrieves a catalog item
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProductByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, product)
}

// validateProduct collects field errors for the admin product forms
func validateProduct(p *models.Product) map[string]string {
	fields := map[string]string{}
	if p.SKU == "" {
		fields["sku"] = "sku is required"
	}
	if p.Name == "" {
		fields["name"] = "name is required"
	}
	if p.RegularPrice < 0 {
		fields["regular_price"] = "price cannot be negative"
	}
	if p.SalePrice.Valid && p.SalePrice.Int64 > p.RegularPrice {
		fields["sale_price"] = "sale price cannot exceed the regular price"
	}
	if p.Stock < 0 {
		fields["stock"] = "stock cannot be negative"
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// createProduct adds a catalog item
func (h *Handler) createProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if p.Status == "" {
		p.Status = models.ProductStatusDraft
	}
	if p.Visibility == "" {
		p.Visibility = models.ProductHidden
	}
	if fields := validateProduct(&p); fields != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation failed", "fields": fields})
		return
	}

	if err := h.catalog.CreateProduct(c.Request.Context(), &p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// updateProduct updates a catalog item
func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	p.ID = id
	if fields := validateProduct(&p); fields != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation failed", "fields": fields})
		return
	}

	if err := h.catalog.UpdateProduct(c.Request.Context(), &p); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to update product", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// deleteProduct removes a catalog item
func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to delete product", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
