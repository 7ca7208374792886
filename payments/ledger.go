package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Anandhu-731/BookNest/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedger is the transaction ledger store over the relational database.
// Booking financial fields and Payment rows are mutated here and nowhere else.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// PaymentExists reports whether a gateway transaction id is already in the
// ledger.
func (l *GormLedger) PaymentExists(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// BillWithBooking resolves a bill code to its bill row and owning booking.
func (l *GormLedger) BillWithBooking(ctx context.Context, billCode string) (*models.GatewayBill, *models.Booking, error) {
	var bill models.GatewayBill
	err := l.db.WithContext(ctx).Where("bill_code = ?", billCode).First(&bill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: bill %s", ErrReferenceNotFound, billCode)
	}
	if err != nil {
		return nil, nil, err
	}

	var booking models.Booking
	err = l.db.WithContext(ctx).First(&booking, bill.BookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: booking %d", ErrReferenceNotFound, bill.BookingID)
	}
	if err != nil {
		return nil, nil, err
	}

	return &bill, &booking, nil
}

// FindBooking loads a booking by id.
func (l *GormLedger) FindBooking(ctx context.Context, bookingID uint) (*models.Booking, error) {
	var booking models.Booking
	err := l.db.WithContext(ctx).First(&booking, bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: booking %d", ErrReferenceNotFound, bookingID)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// CreateBill records a freshly created gateway bill as pending.
func (l *GormLedger) CreateBill(ctx context.Context, bill *models.GatewayBill) error {
	return l.db.WithContext(ctx).Create(bill).Error
}

// ApplySettlement inserts the Payment row and updates the booking and bill in
// one transaction. The booking row is locked for the duration so two
// concurrent settlements cannot both read the same paid amount. The unique
// index on transaction_id turns a duplicate apply into
// ErrDuplicateTransaction.
func (l *GormLedger) ApplySettlement(ctx context.Context, s Settlement) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment := models.Payment{
			BookingID:     s.BookingID,
			Amount:        s.Amount,
			TransactionID: s.TransactionID,
			PaidAt:        s.PaidAt,
			Status:        models.PaymentCompleted,
			Note:          s.Note,
		}
		if err := tx.Create(&payment).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateTransaction
			}
			return err
		}

		var booking models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, s.BookingID).Error; err != nil {
			return err
		}

		// Authoritative re-check under the row lock; the engine's clamp was
		// computed from a read outside this transaction.
		if s.Amount > booking.RemainingAmount() {
			return fmt.Errorf("booking %d: %w", s.BookingID, ErrExcessSettlement)
		}

		booking.PaidAmount += s.Amount
		updates := map[string]interface{}{
			"paid_amount":    booking.PaidAmount,
			"payment_status": booking.DerivePaymentStatus(),
		}
		if booking.Status == models.BookingStatusPending && booking.PaidAmount >= booking.TotalAmount {
			updates["status"] = models.BookingStatusConfirmed
		}
		if err := tx.Model(&models.Booking{}).Where("id = ?", booking.ID).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&models.GatewayBill{}).
			Where("bill_code = ?", s.BillCode).
			Update("status", models.BillStatusSuccessful).Error
	})
}

// StalePendingBills lists pending bills created before the cutoff, oldest
// first, for the status-poll reconciler.
func (l *GormLedger) StalePendingBills(ctx context.Context, olderThan time.Time, limit int) ([]models.GatewayBill, error) {
	var bills []models.GatewayBill
	err := l.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.BillStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Fallback for drivers that predate gorm's error translation.
	return strings.Contains(err.Error(), "duplicate key")
}
