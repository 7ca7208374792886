package models

import (
	"time"
)

// GatewayBill status constants
const (
	BillStatusPending    = "pending"
	BillStatusSuccessful = "successful"
)

// GatewayBill records one payment collection request issued to the gateway.
// A booking may accumulate several bills over retried attempts; the Payment
// row's unique transaction id is what stops double application, not the bill.
type GatewayBill struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BillCode  string    `json:"bill_code" gorm:"uniqueIndex"`
	BookingID uint      `json:"booking_id" gorm:"index"`
	Amount    int64     `json:"amount"` // in sen
	Status    string    `json:"status" gorm:"default:'pending';index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
