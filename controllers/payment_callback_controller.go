package controllers

import (
	"errors"
	"net/http"

	"github.com/Anandhu-731/BookNest/gateway"
	"github.com/Anandhu-731/BookNest/payments"
	"github.com/Anandhu-731/BookNest/utils"
	"github.com/gin-gonic/gin"
)

// Callback receives the gateway's asynchronous payment notification. The
// gateway delivers at least once, so near-simultaneous duplicates are normal:
// whoever takes the per-bill guard does the work, everyone else acknowledges
// immediately. The response body is a plain machine-readable acknowledgment,
// never HTML.
//
// Response contract: 200 "OK" tells the gateway not to retry (applied, already
// applied, or not yet paid); 4xx marks malformed or unresolvable
// notifications; 5xx is reserved for transient failures where a gateway retry
// can succeed.
// POST /v1/payment/callback
func (h *PaymentHandler) Callback(c *gin.Context) {
	billCode := c.PostForm("billcode")
	if billCode == "" {
		utils.LogError("Payment callback without billcode from %s", c.ClientIP())
		c.String(http.StatusBadRequest, "ERROR: missing billcode")
		return
	}

	// The notification's own status/amount fields are untrusted; reconciliation
	// re-reads everything from the gateway. They are logged for traceability.
	utils.LogInfo("Payment callback for bill %s (order_id=%s, status_id=%s)",
		billCode, c.PostForm("order_id"), c.PostForm("status_id"))

	if !h.locks.TryAcquire(billCode) {
		utils.LogInfo("Bill %s is already being reconciled, acknowledging duplicate delivery", billCode)
		c.String(http.StatusOK, "OK")
		return
	}
	defer h.locks.Release(billCode)

	outcome, err := h.svc.Reconcile(c.Request.Context(), billCode)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrReferenceNotFound):
			c.String(http.StatusBadRequest, "ERROR: unknown reference")
		case errors.Is(err, payments.ErrBookingCancelled):
			// Terminal; a retry cannot fix it. The anomaly alert has already
			// fired, so stop the gateway from redelivering.
			c.String(http.StatusOK, "OK")
		case errors.Is(err, gateway.ErrGatewayUnreachable):
			c.String(http.StatusBadGateway, "ERROR: gateway unavailable")
		default:
			utils.LogError("Callback reconciliation of bill %s failed: %v", billCode, err)
			c.String(http.StatusInternalServerError, "ERROR: reconciliation failed")
		}
		return
	}

	utils.LogInfo("Callback for bill %s reconciled with outcome %s", billCode, outcome)
	c.String(http.StatusOK, "OK")
}
