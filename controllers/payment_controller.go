package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Anandhu-731/BookNest/gateway"
	"github.com/Anandhu-731/BookNest/payments"
	"github.com/Anandhu-731/BookNest/utils"
	"github.com/gin-gonic/gin"
)

// PaymentService is the slice of the reconciliation engine the HTTP layer
// needs. Booking pages use InitiatePayment and RemainingBalance; the callback,
// return and admin endpoints drive Reconcile.
type PaymentService interface {
	InitiatePayment(ctx context.Context, bookingID uint) (*payments.PaymentIntent, error)
	RemainingBalance(ctx context.Context, bookingID uint) (int64, error)
	Reconcile(ctx context.Context, billCode string) (payments.Outcome, error)
}

// PaymentHandler serves the payment endpoints of the booking portals.
type PaymentHandler struct {
	svc   PaymentService
	locks *payments.BillLocks
}

func NewPaymentHandler(svc PaymentService, locks *payments.BillLocks) *PaymentHandler {
	return &PaymentHandler{svc: svc, locks: locks}
}

// InitiatePayment creates a gateway bill for the booking's outstanding
// balance and returns the hosted payment URL for the "pay now" link.
// POST /v1/bookings/:id/payment/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	utils.LogInfo("InitiatePayment called")
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	intent, err := h.svc.InitiatePayment(c.Request.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrReferenceNotFound):
			utils.LogError("Booking %d not found for payment initiation", bookingID)
			utils.NotFound(c, "Booking not found")
		case errors.Is(err, payments.ErrBookingCancelled):
			utils.BadRequest(c, "Cancelled bookings cannot be paid", nil)
		case errors.Is(err, payments.ErrNothingOwed):
			utils.BadRequest(c, "This booking is already fully paid", nil)
		case errors.Is(err, gateway.ErrGatewayRejected):
			utils.LogError("Gateway rejected bill for booking %d: %v", bookingID, err)
			utils.BadRequest(c, "The payment provider rejected the request, please try again later", nil)
		case errors.Is(err, gateway.ErrGatewayUnreachable):
			utils.LogError("Gateway unreachable while initiating payment for booking %d: %v", bookingID, err)
			utils.ServiceUnavailable(c, "The payment provider is currently unavailable")
		default:
			utils.LogError("Failed to initiate payment for booking %d: %v", bookingID, err)
			utils.InternalServerError(c, "Failed to initiate payment", nil)
		}
		return
	}

	utils.LogInfo("Payment initiated for booking %d with bill %s", bookingID, intent.BillCode)
	utils.Success(c, "Payment initiated successfully", gin.H{
		"bill_code":      intent.BillCode,
		"payment_url":    intent.PaymentURL,
		"amount":         intent.Amount,
		"amount_display": fmt.Sprintf("RM %.2f", float64(intent.Amount)/100),
	})
}

// RemainingBalance returns the booking's outstanding balance.
// GET /v1/bookings/:id/payment/balance
func (h *PaymentHandler) RemainingBalance(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	remaining, err := h.svc.RemainingBalance(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, payments.ErrReferenceNotFound) {
			utils.NotFound(c, "Booking not found")
			return
		}
		utils.LogError("Failed to load balance for booking %d: %v", bookingID, err)
		utils.InternalServerError(c, "Failed to load balance", nil)
		return
	}

	utils.Success(c, "Balance retrieved successfully", gin.H{
		"booking_id":        bookingID,
		"remaining":         remaining,
		"remaining_display": fmt.Sprintf("RM %.2f", float64(remaining)/100),
	})
}

// Return handles the payer's browser coming back from the gateway's hosted
// page. It runs the same reconciliation as the callback so the booking page
// can show the settled state immediately, without waiting for the
// server-to-server notification.
// GET /v1/payment/return
func (h *PaymentHandler) Return(c *gin.Context) {
	billCode := c.Query("billcode")
	if billCode == "" {
		utils.BadRequest(c, "billcode is required", nil)
		return
	}

	if !h.locks.TryAcquire(billCode) {
		// The callback is already reconciling this bill; report pending and
		// let the page poll the balance.
		utils.Success(c, "Payment is being processed", gin.H{"state": "pending"})
		return
	}
	defer h.locks.Release(billCode)

	outcome, err := h.svc.Reconcile(c.Request.Context(), billCode)
	if err != nil {
		if errors.Is(err, payments.ErrReferenceNotFound) {
			utils.NotFound(c, "Unknown bill reference")
			return
		}
		// Cancelled bookings, gateway outages and the rest all read as
		// "pending" to the payer; operators see the log and alert.
		utils.LogError("Return-path reconciliation of bill %s failed: %v", billCode, err)
		utils.Success(c, "Payment is being processed", gin.H{"state": "pending"})
		return
	}

	state := "pending"
	if outcome == payments.OutcomeApplied || outcome == payments.OutcomeAlreadyApplied {
		state = "paid"
	}
	utils.Success(c, "Payment status retrieved", gin.H{"state": state})
}

func bookingIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		utils.BadRequest(c, "Invalid booking id", nil)
		return 0, false
	}
	return uint(id), true
}
