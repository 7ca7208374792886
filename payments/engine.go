package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Anandhu-731/BookNest/gateway"
	"github.com/Anandhu-731/BookNest/models"
	"github.com/Anandhu-731/BookNest/utils"
)

// Outcome classifies a reconciliation run. AlreadyApplied and NotYetPaid are
// normal control flow, not errors.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeNotYetPaid     Outcome = "not_yet_paid"
)

// Terminal reconciliation errors. These are never retried; they are logged
// and raised to the operator.
var (
	ErrReferenceNotFound    = errors.New("no local booking matches the bill reference")
	ErrBookingCancelled     = errors.New("booking is cancelled")
	ErrExcessSettlement     = errors.New("settlement exceeds remaining balance")
	ErrNothingOwed          = errors.New("booking has no outstanding balance")
	ErrDuplicateTransaction = errors.New("transaction already applied")
)

// Gateway is the outbound side of the engine: bill creation and the
// authoritative settlement query.
type Gateway interface {
	CreateBill(ctx context.Context, in gateway.CreateBillInput) (*gateway.CreateBillResult, error)
	GetTransactionStatus(ctx context.Context, billCode string) (*gateway.TransactionStatus, error)
}

// Ledger is the persistence side. ApplySettlement must be atomic and must
// return ErrDuplicateTransaction when the transaction id was already applied,
// and ErrExcessSettlement when the amount no longer fits the booking.
type Ledger interface {
	PaymentExists(ctx context.Context, transactionID string) (bool, error)
	BillWithBooking(ctx context.Context, billCode string) (*models.GatewayBill, *models.Booking, error)
	FindBooking(ctx context.Context, bookingID uint) (*models.Booking, error)
	CreateBill(ctx context.Context, bill *models.GatewayBill) error
	ApplySettlement(ctx context.Context, s Settlement) error
	StalePendingBills(ctx context.Context, olderThan time.Time, limit int) ([]models.GatewayBill, error)
}

// Notifier raises reconciliation anomalies to an operator. Implementations
// must not block the caller.
type Notifier interface {
	NotifyAnomaly(subject, detail string)
}

// Settlement is the atomic unit the ledger applies: one Payment row plus the
// booking and bill updates that go with it.
type Settlement struct {
	BookingID     uint
	BillCode      string
	Amount        int64 // in sen
	TransactionID string
	PaidAt        time.Time
	Note          string
}

// PaymentIntent is what booking pages need to render a "pay now" link.
type PaymentIntent struct {
	BillCode   string
	PaymentURL string
	Amount     int64 // in sen
}

// EngineConfig carries the settlement policy.
type EngineConfig struct {
	// ClampExcess applies min(reported, remaining) when the gateway reports
	// more than the booking still owes. When false the excess is a terminal
	// error instead. Either way the anomaly is reported.
	ClampExcess bool
}

// Engine cross-checks gateway-reported settlements against the local ledger
// and applies each gateway transaction at most once.
type Engine struct {
	gateway     Gateway
	ledger      Ledger
	alerts      Notifier
	clampExcess bool
}

func NewEngine(gw Gateway, ledger Ledger, alerts Notifier, cfg EngineConfig) *Engine {
	return &Engine{
		gateway:     gw,
		ledger:      ledger,
		alerts:      alerts,
		clampExcess: cfg.ClampExcess,
	}
}

// Reconcile verifies the bill against the gateway and applies the settlement
// to the ledger exactly once. Safe to call any number of times from the
// callback path and the poll path alike.
func (e *Engine) Reconcile(ctx context.Context, billCode string) (Outcome, error) {
	status, err := e.gateway.GetTransactionStatus(ctx, billCode)
	if err != nil {
		if errors.Is(err, gateway.ErrBillNotFound) {
			e.alerts.NotifyAnomaly("Bill unknown to gateway",
				fmt.Sprintf("Bill %s has a local record but the gateway does not know it.", billCode))
			return "", fmt.Errorf("%w: bill %s", ErrReferenceNotFound, billCode)
		}
		return "", fmt.Errorf("query gateway for bill %s: %w", billCode, err)
	}

	if !status.Paid {
		utils.LogDebug("Bill %s not yet paid at gateway", billCode)
		return OutcomeNotYetPaid, nil
	}

	// Idempotency gate: the gateway transaction id, not the bill code, since a
	// bill can be queried many times around its settlement.
	exists, err := e.ledger.PaymentExists(ctx, status.TransactionID)
	if err != nil {
		return "", fmt.Errorf("check ledger for transaction %s: %w", status.TransactionID, err)
	}
	if exists {
		utils.LogDebug("Transaction %s already applied for bill %s", status.TransactionID, billCode)
		return OutcomeAlreadyApplied, nil
	}

	bill, booking, err := e.ledger.BillWithBooking(ctx, billCode)
	if err != nil {
		if errors.Is(err, ErrReferenceNotFound) {
			e.alerts.NotifyAnomaly("Settled bill without a booking",
				fmt.Sprintf("Gateway reports bill %s settled (transaction %s) but no local booking matches.",
					billCode, status.TransactionID))
			return "", fmt.Errorf("%w: bill %s", ErrReferenceNotFound, billCode)
		}
		return "", fmt.Errorf("load booking for bill %s: %w", billCode, err)
	}

	if booking.Status == models.BookingStatusCancelled {
		e.alerts.NotifyAnomaly("Settlement on cancelled booking",
			fmt.Sprintf("Bill %s (booking %d) settled %s via transaction %s but the booking is cancelled. Funds need a manual refund.",
				billCode, booking.ID, formatAmount(status.Amount), status.TransactionID))
		return "", fmt.Errorf("booking %d: %w", booking.ID, ErrBookingCancelled)
	}

	remaining := booking.RemainingAmount()
	if remaining <= 0 {
		e.alerts.NotifyAnomaly("Settlement on fully paid booking",
			fmt.Sprintf("Bill %s settled transaction %s for %s but booking %d owes nothing.",
				billCode, status.TransactionID, formatAmount(status.Amount), booking.ID))
		return OutcomeAlreadyApplied, nil
	}

	amount := status.Amount
	if amount > remaining {
		e.alerts.NotifyAnomaly("Settlement exceeds remaining balance",
			fmt.Sprintf("Bill %s reports %s settled but booking %d only owes %s (transaction %s).",
				billCode, formatAmount(status.Amount), booking.ID, formatAmount(remaining), status.TransactionID))
		if !e.clampExcess {
			return "", fmt.Errorf("bill %s: %w", billCode, ErrExcessSettlement)
		}
		amount = remaining
	}

	err = e.ledger.ApplySettlement(ctx, Settlement{
		BookingID:     booking.ID,
		BillCode:      bill.BillCode,
		Amount:        amount,
		TransactionID: status.TransactionID,
		PaidAt:        status.PaidAt,
		Note:          fmt.Sprintf("Gateway settlement for bill %s", bill.BillCode),
	})
	if errors.Is(err, ErrDuplicateTransaction) {
		// A concurrent reconciliation won the race; nothing left to do.
		utils.LogInfo("Transaction %s applied concurrently for bill %s", status.TransactionID, billCode)
		return OutcomeAlreadyApplied, nil
	}
	if err != nil {
		return "", fmt.Errorf("apply settlement for bill %s: %w", billCode, err)
	}

	utils.LogInfo("Applied settlement of %s to booking %d (bill %s, transaction %s)",
		formatAmount(amount), booking.ID, billCode, status.TransactionID)
	return OutcomeApplied, nil
}

// InitiatePayment creates a gateway bill for the booking's remaining balance
// and records it locally as pending.
func (e *Engine) InitiatePayment(ctx context.Context, bookingID uint) (*PaymentIntent, error) {
	booking, err := e.ledger.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrBookingCancelled)
	}

	remaining := booking.RemainingAmount()
	if remaining <= 0 {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNothingOwed)
	}

	result, err := e.gateway.CreateBill(ctx, gateway.CreateBillInput{
		BookingRef:  strconv.FormatUint(uint64(booking.ID), 10),
		Amount:      remaining,
		Description: fmt.Sprintf("Balance payment for booking #%d", booking.ID),
		PayerName:   booking.CustomerName,
		PayerEmail:  booking.CustomerEmail,
		PayerPhone:  booking.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}

	bill := &models.GatewayBill{
		BillCode:  result.BillCode,
		BookingID: booking.ID,
		Amount:    remaining,
		Status:    models.BillStatusPending,
	}
	if err := e.ledger.CreateBill(ctx, bill); err != nil {
		return nil, fmt.Errorf("record bill %s: %w", result.BillCode, err)
	}

	utils.LogInfo("Created bill %s for booking %d (%s)", result.BillCode, booking.ID, formatAmount(remaining))
	return &PaymentIntent{
		BillCode:   result.BillCode,
		PaymentURL: result.PaymentURL,
		Amount:     remaining,
	}, nil
}

// RemainingBalance returns the booking's outstanding balance in sen.
func (e *Engine) RemainingBalance(ctx context.Context, bookingID uint) (int64, error) {
	booking, err := e.ledger.FindBooking(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	return booking.RemainingAmount(), nil
}

func formatAmount(sen int64) string {
	return fmt.Sprintf("RM %.2f", float64(sen)/100)
}
