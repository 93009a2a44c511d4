package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	maxWebhookBody  = 64 << 10 // 64 KB
	signatureHeader = "Stripe-Signature"
)

// checkout starts (or resumes) a checkout and sends the browser to the
// provider's hosted page.
func (h *Handler) checkout(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		h.errorPage(c, "checkout_bad_product_id", service.ErrProductNotFound, "product_id", c.Param("product_id"))
		return
	}
	buyerID, _ := currentUserID(c)
	attempt := c.Query("attempt")
	if attempt == "" {
		attempt = uuid.NewString()
	}

	order, err := h.services.StartCheckout(c.Request.Context(), buyerID, productID, attempt)
	if err != nil {
		h.errorPage(c, "checkout_start_failed", err, "product_id", productID, "buyer_id", buyerID)
		return
	}
	if h.log != nil {
		h.log.Infow("checkout_redirect", "order_id", order.ID, "session_id", order.ProviderSessionID)
	}
	c.Redirect(http.StatusSeeOther, order.CheckoutURL)
}

// orderSuccess is the provider's success redirect target.
func (h *Handler) orderSuccess(c *gin.Context) {
	sessionID := c.Query("session_id")
	order, err := h.services.ConfirmSuccess(c.Request.Context(), sessionID)
	if err != nil {
		h.errorPage(c, "checkout_confirm_failed", err, "session_id", sessionID)
		return
	}

	var product *models.Product
	if p, err := h.services.GetProduct(c.Request.Context(), order.ProductID); err == nil {
		product = p
	}
	h.page(c, http.StatusOK, "order_success.html", gin.H{
		"Title":   "Order",
		"Order":   order,
		"Paid":    order.Status == models.OrderPaid,
		"Product": product,
		"Amount":  formatMinor(order.AmountMinor),
	})
}

// orderCancel is the provider's cancel redirect target.
func (h *Handler) orderCancel(c *gin.Context) {
	orderID := c.Query("order_id")
	order, err := h.services.CancelCheckout(c.Request.Context(), orderID)
	if err != nil {
		h.errorPage(c, "checkout_cancel_failed", err, "order_id", orderID)
		return
	}
	h.page(c, http.StatusOK, "order_cancel.html", gin.H{"Title": "Order canceled", "Order": order})
}

// @Summary      Get an order
// @Description  Returns one of the caller's orders.
// @Tags         orders
// @Produce      json
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  models.Order
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/orders/{id} [get]
func (h *Handler) apiGetOrder(c *gin.Context) {
	buyerID, _ := currentUserID(c)
	order, err := h.services.GetOrder(c.Request.Context(), c.Param("id"), buyerID)
	if err != nil {
		h.serviceJSONError(c, "order_get_failed", err, "order_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, order)
}

// @Summary      Payment provider webhook
// @Description  Signed checkout.session.* events trigger a verified status reconciliation.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /webhooks/payment [post]
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, "unreadable body", "webhook_read_failed", err)
		return
	}
	if len(payload) > maxWebhookBody {
		h.logAndJSONError(c, http.StatusRequestEntityTooLarge, "body too large", "webhook_too_large",
			errors.New("webhook payload over limit"), "bytes", len(payload))
		return
	}

	order, err := h.services.HandleProviderEvent(c.Request.Context(), payload, c.GetHeader(signatureHeader))
	if err != nil {
		h.serviceJSONError(c, "webhook_failed", err)
		return
	}
	resp := gin.H{"received": true}
	if order != nil {
		resp["order_id"] = order.ID
		resp["status"] = order.Status
	}
	c.JSON(http.StatusOK, resp)
}
