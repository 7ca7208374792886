package controllers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Anandhu-731/BookNest/controllers"
	"github.com/Anandhu-731/BookNest/gateway"
	"github.com/Anandhu-731/BookNest/payments"
	"github.com/Anandhu-731/BookNest/routes"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentService struct {
	outcome        payments.Outcome
	reconcileErr   error
	reconcileCalls int32

	intent      *payments.PaymentIntent
	initiateErr error

	balance    int64
	balanceErr error
}

func (f *fakePaymentService) InitiatePayment(ctx context.Context, bookingID uint) (*payments.PaymentIntent, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return f.intent, nil
}

func (f *fakePaymentService) RemainingBalance(ctx context.Context, bookingID uint) (int64, error) {
	return f.balance, f.balanceErr
}

func (f *fakePaymentService) Reconcile(ctx context.Context, billCode string) (payments.Outcome, error) {
	atomic.AddInt32(&f.reconcileCalls, 1)
	return f.outcome, f.reconcileErr
}

func newTestRouter(svc *fakePaymentService) (*gin.Engine, *payments.BillLocks) {
	gin.SetMode(gin.TestMode)
	locks := payments.NewBillLocks()
	handler := controllers.NewPaymentHandler(svc, locks)
	admin := controllers.NewAdminPaymentHandler(nil, svc, locks)
	return routes.SetupRouter(handler, admin), locks
}

func postCallback(router *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/payment/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func callbackForm(billCode string) url.Values {
	form := url.Values{}
	form.Set("billcode", billCode)
	form.Set("order_id", "42")
	form.Set("status_id", "1")
	return form
}

func TestCallbackAcknowledgesSuccessOutcomes(t *testing.T) {
	for _, outcome := range []payments.Outcome{
		payments.OutcomeApplied,
		payments.OutcomeAlreadyApplied,
		payments.OutcomeNotYetPaid,
	} {
		svc := &fakePaymentService{outcome: outcome}
		router, _ := newTestRouter(svc)

		w := postCallback(router, callbackForm("b1"))
		assert.Equal(t, http.StatusOK, w.Code, "outcome %s", outcome)
		assert.Equal(t, "OK", w.Body.String())
		assert.Equal(t, int32(1), svc.reconcileCalls)
	}
}

func TestCallbackMissingBillCode(t *testing.T) {
	svc := &fakePaymentService{outcome: payments.OutcomeApplied}
	router, _ := newTestRouter(svc)

	w := postCallback(router, url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERROR")
	assert.Equal(t, int32(0), svc.reconcileCalls)
}

func TestCallbackUnknownReference(t *testing.T) {
	svc := &fakePaymentService{reconcileErr: fmt.Errorf("wrapped: %w", payments.ErrReferenceNotFound)}
	router, _ := newTestRouter(svc)

	w := postCallback(router, callbackForm("ghost"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERROR: unknown reference")
}

func TestCallbackCancelledBookingStopsRetries(t *testing.T) {
	svc := &fakePaymentService{reconcileErr: fmt.Errorf("booking 1: %w", payments.ErrBookingCancelled)}
	router, _ := newTestRouter(svc)

	w := postCallback(router, callbackForm("b1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestCallbackGatewayUnreachableInvitesRetry(t *testing.T) {
	svc := &fakePaymentService{reconcileErr: gateway.ErrGatewayUnreachable}
	router, _ := newTestRouter(svc)

	w := postCallback(router, callbackForm("b1"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "ERROR")
}

func TestCallbackDuplicateDeliveryWhileLocked(t *testing.T) {
	svc := &fakePaymentService{outcome: payments.OutcomeApplied}
	router, locks := newTestRouter(svc)

	// Simulate the first delivery still holding the per-bill guard.
	require.True(t, locks.TryAcquire("b1"))
	defer locks.Release("b1")

	w := postCallback(router, callbackForm("b1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, int32(0), svc.reconcileCalls, "lock holder does the work, duplicate must not")
}

func TestCallbackRejectsReadMethods(t *testing.T) {
	svc := &fakePaymentService{outcome: payments.OutcomeApplied}
	router, _ := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/payment/callback", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, int32(0), svc.reconcileCalls)
}

func TestReturnReportsPaidState(t *testing.T) {
	svc := &fakePaymentService{outcome: payments.OutcomeApplied}
	router, _ := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/payment/return?billcode=b1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"paid"`)
}

func TestReturnReportsPendingWhileLocked(t *testing.T) {
	svc := &fakePaymentService{outcome: payments.OutcomeApplied}
	router, locks := newTestRouter(svc)

	require.True(t, locks.TryAcquire("b1"))
	defer locks.Release("b1")

	req := httptest.NewRequest(http.MethodGet, "/v1/payment/return?billcode=b1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"pending"`)
	assert.Equal(t, int32(0), svc.reconcileCalls)
}

func TestInitiatePaymentEndpoint(t *testing.T) {
	svc := &fakePaymentService{intent: &payments.PaymentIntent{
		BillCode:   "abc123",
		PaymentURL: "https://pay.example.com/abc123",
		Amount:     25000,
	}}
	router, _ := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/42/payment/initiate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bill_code":"abc123"`)
	assert.Contains(t, w.Body.String(), "RM 250.00")
}

func TestInitiatePaymentInvalidBookingID(t *testing.T) {
	svc := &fakePaymentService{}
	router, _ := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/not-a-number/payment/initiate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitiatePaymentFullyPaid(t *testing.T) {
	svc := &fakePaymentService{initiateErr: fmt.Errorf("booking 42: %w", payments.ErrNothingOwed)}
	router, _ := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/42/payment/initiate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already fully paid")
}

func TestRemainingBalanceEndpoint(t *testing.T) {
	svc := &fakePaymentService{balance: 17500}
	router, _ := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/7/payment/balance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining":17500`)
	assert.Contains(t, w.Body.String(), "RM 175.00")
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	svc := &fakePaymentService{}
	router, _ := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/bills/b1/reconcile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int32(0), svc.reconcileCalls)
}
