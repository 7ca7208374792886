package controllers

import (
	"errors"

	"github.com/Anandhu-731/BookNest/models"
	"github.com/Anandhu-731/BookNest/payments"
	"github.com/Anandhu-731/BookNest/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminPaymentHandler serves the operator-facing views of the payment ledger
// and the manual re-reconcile action for stuck bills.
type AdminPaymentHandler struct {
	db    *gorm.DB
	svc   PaymentService
	locks *payments.BillLocks
}

func NewAdminPaymentHandler(db *gorm.DB, svc PaymentService, locks *payments.BillLocks) *AdminPaymentHandler {
	return &AdminPaymentHandler{db: db, svc: svc, locks: locks}
}

// ListPayments returns the payment ledger, newest first.
// GET /v1/admin/payments
func (h *AdminPaymentHandler) ListPayments(c *gin.Context) {
	pagination := utils.NewPagination(c)

	query := h.db.Model(&models.Payment{})
	if bookingID := c.Query("booking_id"); bookingID != "" {
		query = query.Where("booking_id = ?", bookingID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.LogError("Failed to count payments: %v", err)
		utils.InternalServerError(c, "Failed to list payments", nil)
		return
	}

	var records []models.Payment
	err := query.Order("created_at DESC").
		Offset(pagination.Offset).
		Limit(pagination.Limit).
		Find(&records).Error
	if err != nil {
		utils.LogError("Failed to list payments: %v", err)
		utils.InternalServerError(c, "Failed to list payments", nil)
		return
	}

	utils.SuccessWithPagination(c, "Payments retrieved successfully", records, total, pagination.Page, pagination.Limit)
}

// ListBills returns gateway bill records, optionally filtered by status, for
// support investigations.
// GET /v1/admin/bills
func (h *AdminPaymentHandler) ListBills(c *gin.Context) {
	pagination := utils.NewPagination(c)

	query := h.db.Model(&models.GatewayBill{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.LogError("Failed to count bills: %v", err)
		utils.InternalServerError(c, "Failed to list bills", nil)
		return
	}

	var bills []models.GatewayBill
	err := query.Order("created_at DESC").
		Offset(pagination.Offset).
		Limit(pagination.Limit).
		Find(&bills).Error
	if err != nil {
		utils.LogError("Failed to list bills: %v", err)
		utils.InternalServerError(c, "Failed to list bills", nil)
		return
	}

	utils.SuccessWithPagination(c, "Bills retrieved successfully", bills, total, pagination.Page, pagination.Limit)
}

// RequeueBill re-drives reconciliation for a bill whose callback never
// arrived, under the same per-bill guard as the callback endpoint.
// POST /v1/admin/bills/:billcode/reconcile
func (h *AdminPaymentHandler) RequeueBill(c *gin.Context) {
	billCode := c.Param("billcode")
	if billCode == "" {
		utils.BadRequest(c, "billcode is required", nil)
		return
	}
	utils.LogInfo("Manual reconciliation requested for bill %s", billCode)

	if !h.locks.TryAcquire(billCode) {
		utils.Conflict(c, "This bill is already being reconciled", nil)
		return
	}
	defer h.locks.Release(billCode)

	outcome, err := h.svc.Reconcile(c.Request.Context(), billCode)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrReferenceNotFound):
			utils.NotFound(c, "No booking matches this bill")
		case errors.Is(err, payments.ErrBookingCancelled):
			utils.Conflict(c, "The booking behind this bill is cancelled", err.Error())
		default:
			utils.LogError("Manual reconciliation of bill %s failed: %v", billCode, err)
			utils.InternalServerError(c, "Reconciliation failed", err.Error())
		}
		return
	}

	utils.Success(c, "Reconciliation completed", gin.H{
		"bill_code": billCode,
		"outcome":   string(outcome),
	})
}
