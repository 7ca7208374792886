package models

import (
	"time"
)

// Booking status constants
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Payment status constants for a booking
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPartial  = "partial"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

type Booking struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	VendorID      uint      `json:"vendor_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	TotalAmount   int64     `json:"total_amount"` // in sen
	PaidAmount    int64     `json:"paid_amount"`  // in sen, never decreases
	PaymentStatus string    `json:"payment_status" gorm:"default:'pending'"`
	Status        string    `json:"status" gorm:"default:'pending'"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RemainingAmount returns the outstanding balance in sen.
func (b *Booking) RemainingAmount() int64 {
	return b.TotalAmount - b.PaidAmount
}

// DerivePaymentStatus computes the payment status from the paid and total
// amounts. The refunded state is terminal and never derived here.
func (b *Booking) DerivePaymentStatus() string {
	if b.PaymentStatus == PaymentStatusRefunded {
		return PaymentStatusRefunded
	}
	switch {
	case b.TotalAmount > 0 && b.PaidAmount >= b.TotalAmount:
		return PaymentStatusPaid
	case b.PaidAmount > 0:
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}
