// Package toss implements the payment.Gateway interface against the Toss
// Payments REST API.
package toss

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/itsmycolor/commerce-core/internal/domain/payment"
)

// DefaultBaseURL is the production Toss Payments API endpoint.
const DefaultBaseURL = "https://api.tosspayments.com"

// Config holds the gateway client configuration.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// APIError is a non-2xx response from the Toss API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toss: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

var _ payment.Gateway = (*Client)(nil)

// Client is an authenticated HTTP client for the Toss Payments API.
type Client struct {
	baseURL string
	auth    string
	http    *http.Client
}

// NewClient creates a Client from cfg. The secret key is sent as HTTP basic
// auth with an empty password, per the Toss API contract.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey+":")),
		http:    &http.Client{Timeout: timeout},
	}
}

type confirmRequest struct {
	PaymentKey string          `json:"paymentKey"`
	OrderID    string          `json:"orderId"`
	Amount     decimal.Decimal `json:"amount"`
}

type confirmResponse struct {
	Status         string `json:"status"`
	Method         string `json:"method"`
	VirtualAccount *struct {
		Bank          string    `json:"bank"`
		AccountNumber string    `json:"accountNumber"`
		DueDate       time.Time `json:"dueDate"`
	} `json:"virtualAccount"`
}

// Confirm approves the payment at Toss and returns its resulting status.
func (c *Client) Confirm(ctx context.Context, paymentKey, orderID string, amount decimal.Decimal) (*payment.ConfirmResult, error) {
	var resp confirmResponse
	err := c.post(ctx, "/v1/payments/confirm", confirmRequest{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
	}, &resp)
	if err != nil {
		return nil, err
	}

	res := &payment.ConfirmResult{
		Status: resp.Status,
		Method: normalizeMethod(resp.Method),
	}
	if va := resp.VirtualAccount; va != nil {
		res.VirtualAccount = &payment.VirtualAccount{
			Bank:          va.Bank,
			AccountNumber: va.AccountNumber,
			DueDate:       va.DueDate,
		}
	}
	return res, nil
}

// Cancel voids the payment at Toss.
func (c *Client) Cancel(ctx context.Context, paymentKey, reason string) error {
	return c.post(ctx, "/v1/payments/"+paymentKey+"/cancel",
		map[string]string{"cancelReason": reason}, &struct{}{})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// normalizeMethod maps the localized method names Toss returns to the
// canonical identifiers used in webhook payloads.
func normalizeMethod(method string) string {
	switch method {
	case "가상계좌", "VIRTUAL_ACCOUNT":
		return payment.MethodVirtualAccount
	default:
		return method
	}
}
