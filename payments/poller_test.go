package payments

import (
	"context"
	"testing"
	"time"

	"github.com/Anandhu-731/BookNest/gateway"
	"github.com/Anandhu-731/BookNest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staleBill(code string, bookingID uint, amount int64) models.GatewayBill {
	return models.GatewayBill{
		BillCode:  code,
		BookingID: bookingID,
		Amount:    amount,
		Status:    models.BillStatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func TestSweepAppliesStaleSettlements(t *testing.T) {
	engine, gw, ledger, _ := newTestEngine()
	ledger.addBooking(models.Booking{ID: 1, TotalAmount: 50000, Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPending})
	ledger.addBooking(models.Booking{ID: 2, TotalAmount: 20000, Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPending})
	ledger.addBill(staleBill("paid-bill", 1, 50000))
	ledger.addBill(staleBill("unpaid-bill", 2, 20000))
	gw.statuses["paid-bill"] = settled(50000, "T1")
	gw.statuses["unpaid-bill"] = &gateway.TransactionStatus{Paid: false}

	poller := NewPoller(engine, ledger, time.Minute, 10*time.Minute, 50)
	applied, err := poller.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, models.BillStatusSuccessful, ledger.bill("paid-bill").Status)
	assert.Equal(t, models.BillStatusPending, ledger.bill("unpaid-bill").Status)
}

func TestSweepContinuesPastSingleBillFailure(t *testing.T) {
	engine, gw, ledger, _ := newTestEngine()
	ledger.addBooking(models.Booking{ID: 1, TotalAmount: 50000, Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPending})
	ledger.addBooking(models.Booking{ID: 2, TotalAmount: 20000, Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPending})
	ledger.addBill(staleBill("broken-bill", 1, 50000))
	ledger.addBill(staleBill("good-bill", 2, 20000))
	gw.statusErrs["broken-bill"] = gateway.ErrGatewayUnreachable
	gw.statuses["good-bill"] = settled(20000, "T2")

	poller := NewPoller(engine, ledger, time.Minute, 10*time.Minute, 50)
	applied, err := poller.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, models.BillStatusSuccessful, ledger.bill("good-bill").Status)
}

func TestSweepAfterCallbackIsNoop(t *testing.T) {
	engine, gw, ledger, _ := newTestEngine()
	ledger.addBooking(models.Booking{ID: 1, TotalAmount: 50000, Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPending})
	bill := staleBill("b1", 1, 50000)
	ledger.addBill(bill)
	gw.statuses["b1"] = settled(50000, "T1")

	// Callback path settles first.
	outcome, err := engine.Reconcile(context.Background(), "b1")
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	// The bill is marked successful so the sweep no longer selects it; even a
	// direct reconcile of the same bill is a no-op.
	poller := NewPoller(engine, ledger, time.Minute, 10*time.Minute, 50)
	applied, err := poller.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	outcome, err = engine.Reconcile(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyApplied, outcome)
	assert.Equal(t, 1, ledger.paymentCount())
}

func TestSweepIgnoresFreshBills(t *testing.T) {
	engine, gw, ledger, _ := newTestEngine()
	ledger.addBooking(models.Booking{ID: 1, TotalAmount: 50000, Status: models.BookingStatusPending})
	ledger.addBill(models.GatewayBill{
		BillCode:  "fresh",
		BookingID: 1,
		Amount:    50000,
		Status:    models.BillStatusPending,
		CreatedAt: time.Now(),
	})
	gw.statuses["fresh"] = settled(50000, "T1")

	poller := NewPoller(engine, ledger, time.Minute, 10*time.Minute, 50)
	applied, err := poller.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 0, ledger.paymentCount())
}

func TestPollerStartStop(t *testing.T) {
	engine, gw, ledger, _ := newTestEngine()
	ledger.addBooking(models.Booking{ID: 1, TotalAmount: 50000, Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPending})
	ledger.addBill(staleBill("b1", 1, 50000))
	gw.statuses["b1"] = settled(50000, "T1")

	poller := NewPoller(engine, ledger, 10*time.Millisecond, time.Minute, 50)
	poller.Start()

	deadline := time.Now().Add(2 * time.Second)
	for ledger.paymentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	poller.Stop()

	assert.Equal(t, 1, ledger.paymentCount())
}
