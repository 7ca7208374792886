package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Anandhu-731/BookNest/utils"
)

// Error classes for outbound gateway calls. Network failures, non-2xx
// responses and malformed payloads all collapse into ErrGatewayUnreachable;
// callers only branch on the class, the detail is for logs.
var (
	ErrGatewayUnreachable = errors.New("gateway unreachable")
	ErrGatewayRejected    = errors.New("gateway rejected bill creation")
	ErrBillNotFound       = errors.New("bill not found at gateway")
)

// Config holds the credentials and limits for the gateway client.
type Config struct {
	BaseURL      string
	SecretKey    string
	CategoryCode string
	Timeout      time.Duration
	CallbackURL  string
	ReturnURL    string
}

// Client talks to the payment gateway's bill API: authenticated form-encoded
// POSTs with JSON responses.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateBillInput describes one collection request. Amount is in sen.
type CreateBillInput struct {
	BookingRef  string
	Amount      int64
	Description string
	PayerName   string
	PayerEmail  string
	PayerPhone  string
}

// CreateBillResult is the gateway's handle for a new bill.
type CreateBillResult struct {
	BillCode   string
	PaymentURL string
}

// TransactionStatus is the validated view of a bill's settlement state. It is
// the only shape of gateway data that leaves this package; the raw response is
// never passed on.
type TransactionStatus struct {
	Paid          bool
	Amount        int64 // in sen
	TransactionID string
	PaidAt        time.Time
	BookingRef    string
}

type createBillResponse struct {
	BillCode string `json:"BillCode"`
}

type billTransaction struct {
	BillPaymentStatus   string `json:"billpaymentStatus"`
	BillPaymentAmount   string `json:"billpaymentAmount"`
	BillPaymentInvoice  string `json:"billpaymentInvoiceNo"`
	BillPaymentDate     string `json:"billPaymentDate"`
	BillExternalRefNo   string `json:"billExternalReferenceNo"`
	BillPaymentChannel  string `json:"billpaymentChannel"`
	BillPaymentSettled  string `json:"billpaymentSettlement"`
	BillPaymentSettleDt string `json:"billpaymentSettlementDate"`
}

const (
	txStatusSuccessful = "1"
	paymentDateLayout  = "02-01-2006 15:04:05"
)

// CreateBill registers a collection request for the given amount and returns
// the gateway bill code plus the hosted payment URL.
func (c *Client) CreateBill(ctx context.Context, in CreateBillInput) (*CreateBillResult, error) {
	form := url.Values{}
	form.Set("userSecretKey", c.cfg.SecretKey)
	form.Set("categoryCode", c.cfg.CategoryCode)
	form.Set("billName", "Booking "+in.BookingRef)
	form.Set("billDescription", in.Description)
	form.Set("billPriceSetting", "1")
	form.Set("billPayorInfo", "1")
	form.Set("billAmount", strconv.FormatInt(in.Amount, 10))
	form.Set("billExternalReferenceNo", in.BookingRef)
	form.Set("billTo", in.PayerName)
	form.Set("billEmail", in.PayerEmail)
	form.Set("billPhone", in.PayerPhone)
	form.Set("billPaymentChannel", "0")
	if c.cfg.CallbackURL != "" {
		form.Set("billCallbackUrl", c.cfg.CallbackURL)
	}
	if c.cfg.ReturnURL != "" {
		form.Set("billReturnUrl", c.cfg.ReturnURL)
	}

	body, err := c.post(ctx, "/index.php/api/createBill", form)
	if err != nil {
		return nil, err
	}

	var bills []createBillResponse
	if err := json.Unmarshal(body, &bills); err != nil {
		utils.LogError("Malformed createBill response for booking %s: %v", in.BookingRef, err)
		return nil, fmt.Errorf("%w: malformed createBill response", ErrGatewayUnreachable)
	}
	if len(bills) == 0 || bills[0].BillCode == "" {
		utils.LogError("Gateway rejected bill creation for booking %s: %s", in.BookingRef, string(body))
		return nil, ErrGatewayRejected
	}

	return &CreateBillResult{
		BillCode:   bills[0].BillCode,
		PaymentURL: strings.TrimRight(c.cfg.BaseURL, "/") + "/" + bills[0].BillCode,
	}, nil
}

// GetTransactionStatus queries the gateway for a bill's transactions. It is
// side-effect-free and is the sole source of truth for whether a bill was
// paid. A bill with no settled transaction yet comes back with Paid == false.
func (c *Client) GetTransactionStatus(ctx context.Context, billCode string) (*TransactionStatus, error) {
	form := url.Values{}
	form.Set("userSecretKey", c.cfg.SecretKey)
	form.Set("billCode", billCode)

	body, err := c.post(ctx, "/index.php/api/getBillTransactions", form)
	if err != nil {
		return nil, err
	}

	var txs []billTransaction
	if err := json.Unmarshal(body, &txs); err != nil {
		utils.LogError("Malformed getBillTransactions response for bill %s: %v", billCode, err)
		return nil, fmt.Errorf("%w: malformed getBillTransactions response", ErrGatewayUnreachable)
	}

	status := &TransactionStatus{}
	for _, tx := range txs {
		status.BookingRef = tx.BillExternalRefNo
		if tx.BillPaymentStatus != txStatusSuccessful {
			continue
		}

		amount, err := parseAmount(tx.BillPaymentAmount)
		if err != nil {
			utils.LogError("Unparseable amount %q for bill %s: %v", tx.BillPaymentAmount, billCode, err)
			return nil, fmt.Errorf("%w: bad amount in transaction payload", ErrGatewayUnreachable)
		}
		paidAt, err := time.Parse(paymentDateLayout, tx.BillPaymentDate)
		if err != nil {
			utils.LogError("Unparseable payment date %q for bill %s: %v", tx.BillPaymentDate, billCode, err)
			return nil, fmt.Errorf("%w: bad date in transaction payload", ErrGatewayUnreachable)
		}

		status.Paid = true
		status.Amount = amount
		status.TransactionID = tx.BillPaymentInvoice
		status.PaidAt = paidAt
		break
	}

	return status, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		utils.LogError("Gateway call %s failed: %v", path, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBillNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		utils.LogError("Gateway call %s returned status %d", path, resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	return body, nil
}

// parseAmount converts the gateway's "500.00" style figure to sen.
func parseAmount(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * 100)), nil
}
