package api

import (
	"errors"
	"net/http"
	"strconv"

	"storefront-service/internal/models"
	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

// registerCustomer creates an account
func (h *Handler) registerCustomer(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	customer, err := h.customers.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register customer", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, customer)
}

// listCustomers lists accounts for the admin views
func (h *Handler) listCustomers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	customers, err := h.customers.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list customers", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

// getCustomer retrieves an account with derived counts
func (h *Handler) getCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	customer, err := h.customers.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, customer)
}

// updateCustomer updates account fields
func (h *Handler) updateCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	customer.ID = id

	if err := h.customers.Update(c.Request.Context(), &customer); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to update customer", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, customer)
}

type deleteCustomerRequest struct {
	Confirmation string `json:"confirmation"`
}

// deleteCustomer removes an account after the typed confirmation
func (h *Handler) deleteCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req deleteCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.customers.Delete(c.Request.Context(), id, req.Confirmation)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConfirmationMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrCustomerHasOrders):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete customer", "details": err.Error()})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// requestPasswordReset fires the reset mail event
func (h *Handler) requestPasswordReset(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.customers.RequestPasswordReset(c.Request.Context(), id, req.Token); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to request password reset", "details": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// requestActivation fires the activation mail event
func (h *Handler) requestActivation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.customers.RequestActivation(c.Request.Context(), id, req.Token); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to request activation", "details": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// listAddresses returns the customer's addresses, defaults first
func (h *Handler) listAddresses(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	addresses, err := h.profiles.ListAddresses(c.Request.Context(), customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list addresses", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

// addAddress saves an address; the first of its type becomes the default
func (h *Handler) addAddress(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	addr.CustomerID = customerID

	if addr.Type != models.AddressTypeBilling && addr.Type != models.AddressTypeShipping {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be billing or shipping"})
		return
	}

	if err := h.profiles.AddAddress(c.Request.Context(), &addr); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save address", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, addr)
}

// updateAddress updates address fields
func (h *Handler) updateAddress(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	addressID, ok := pathID(c, "addressID")
	if !ok {
		return
	}

	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	addr.ID = addressID
	addr.CustomerID = customerID

	if err := h.profiles.UpdateAddress(c.Request.Context(), &addr); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to update address", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, addr)
}

// setDefaultAddress makes the target the sole default of its type
func (h *Handler) setDefaultAddress(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	addressID, ok := pathID(c, "addressID")
	if !ok {
		return
	}

	if err := h.profiles.SetDefaultAddress(c.Request.Context(), customerID, addressID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to set default address", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "default set"})
}

// deleteAddress removes an address
func (h *Handler) deleteAddress(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	addressID, ok := pathID(c, "addressID")
	if !ok {
		return
	}

	if err := h.profiles.DeleteAddress(c.Request.Context(), customerID, addressID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to delete address", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// listPaymentMethods returns the customer's active methods, default first
func (h *Handler) listPaymentMethods(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	methods, err := h.profiles.ListPaymentMethods(c.Request.Context(), customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payment methods", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

// addPaymentMethod saves a tokenized payment method
func (h *Handler) addPaymentMethod(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var pm models.PaymentMethod
	if err := c.ShouldBindJSON(&pm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	pm.CustomerID = customerID

	if pm.Type != "" && pm.ProviderMethodID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider_method_id is required"})
		return
	}

	if err := h.profiles.AddPaymentMethod(c.Request.Context(), &pm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save payment method", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, pm)
}

// setDefaultPaymentMethod makes the target the customer's sole default
func (h *Handler) setDefaultPaymentMethod(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	methodID, ok := pathID(c, "methodID")
	if !ok {
		return
	}

	if err := h.profiles.SetDefaultPaymentMethod(c.Request.Context(), customerID, methodID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to set default payment method", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "default set"})
}

// removePaymentMethod deactivates a saved method
func (h *Handler) removePaymentMethod(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	methodID, ok := pathID(c, "methodID")
	if !ok {
		return
	}

	if err := h.profiles.RemovePaymentMethod(c.Request.Context(), customerID, methodID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to remove payment method", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
