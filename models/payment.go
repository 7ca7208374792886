package models

import (
	"time"
)

// PaymentCompleted is the only status a ledger entry is ever written with.
const PaymentCompleted = "completed"

// Payment is an immutable ledger entry. TransactionID is the gateway's
// transaction identifier and carries the unique index that guarantees
// at-most-once application of a settlement.
type Payment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BookingID     uint      `json:"booking_id" gorm:"index"`
	Amount        int64     `json:"amount"` // in sen
	TransactionID string    `json:"transaction_id" gorm:"uniqueIndex"`
	PaidAt        time.Time `json:"paid_at"`
	Status        string    `json:"status" gorm:"default:'completed'"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}
