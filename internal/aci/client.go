package aci

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrCodeServiceUnavailable marks transport failures and provider outages.
const ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

// CallResult is the uniform outcome of every client call. Transport and
// provider errors never propagate as Go errors to callers; they come back
// as OK=false with a classified error code. Rejected transactions parse
// fine and return OK=true with a rejection result code in Object.
type CallResult struct {
	OK           bool
	Object       *PaymentResponse
	RawBody      []byte
	ErrorCode    string
	ErrorMessage string
}

// Client wraps all outbound calls to ACI.
type Client struct {
	settings Settings
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(s Settings) *Client {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		settings: s,
		http:     &http.Client{Timeout: timeout},
		logger:   slog.Default(),
	}
}

func (c *Client) SetLogger(l *slog.Logger) { c.logger = l }

// PrepareCheckout creates a new checkout session for the basket snapshot
// and returns the session ID in Object.ID.
func (c *Client) PrepareCheckout(ctx context.Context, co CheckoutOrder) CallResult {
	return c.post(ctx, c.versionPath("/checkouts"), buildCheckoutPayload(c.settings, co))
}

// UpdateCheckout re-sends the full checkout payload against an existing
// session, immediately before the shopper is redirected to the hosted page.
func (c *Client) UpdateCheckout(ctx context.Context, co CheckoutOrder, checkoutID string) CallResult {
	return c.post(ctx, c.versionPath("/checkouts/"+checkoutID), buildCheckoutPayload(c.settings, co))
}

// PaymentStatus fetches the final payment status by the resourcePath
// returned on the shopper's redirect back from the hosted page.
func (c *Client) PaymentStatus(ctx context.Context, resourcePath string) CallResult {
	u := strings.TrimRight(c.settings.BaseURL, "/") + resourcePath + "?entityId=" + url.QueryEscape(c.settings.EntityID)
	return c.get(ctx, u)
}

// TransactionStatus queries the current status of a payment by its
// transaction ID.
func (c *Client) TransactionStatus(ctx context.Context, paymentID string) CallResult {
	return c.get(ctx, c.versionPath("/query/"+paymentID) + "?entityId=" + url.QueryEscape(c.settings.EntityID))
}

// CapturePayment captures a previously authorized payment.
func (c *Client) CapturePayment(ctx context.Context, paymentID, currency string, amountCents int64) CallResult {
	return c.post(ctx, c.versionPath("/payments/"+paymentID), c.paymentDetails(currency, amountCents, TypeCapture))
}

// RefundPayment refunds a captured payment.
func (c *Client) RefundPayment(ctx context.Context, paymentID, currency string, amountCents int64) CallResult {
	return c.post(ctx, c.versionPath("/payments/"+paymentID), c.paymentDetails(currency, amountCents, TypeRefund))
}

// ReversePayment reverses an authorization that was never captured.
func (c *Client) ReversePayment(ctx context.Context, paymentID string) CallResult {
	v := url.Values{}
	v.Set("entityId", c.settings.EntityID)
	v.Set("paymentType", TypeReversal)
	if c.settings.TestMode != "" {
		v.Set("testMode", c.settings.TestMode)
	}
	return c.post(ctx, c.versionPath("/payments/"+paymentID), v)
}

// PrepareRegistration creates a checkout session for standalone card
// tokenization.
func (c *Client) PrepareRegistration(ctx context.Context, cust Customer) CallResult {
	v := url.Values{}
	v.Set("entityId", c.settings.EntityID)
	v.Set("createRegistration", "true")
	addCustomer(v, cust)
	addTestSettings(v, c.settings)
	return c.post(ctx, c.versionPath("/checkouts"), v)
}

// RegistrationStatus fetches the tokenization outcome by resource path.
func (c *Client) RegistrationStatus(ctx context.Context, resourcePath string) CallResult {
	u := strings.TrimRight(c.settings.BaseURL, "/") + resourcePath + "?entityId=" + url.QueryEscape(c.settings.EntityID)
	return c.get(ctx, u)
}

func (c *Client) paymentDetails(currency string, amountCents int64, paymentType string) url.Values {
	v := url.Values{}
	v.Set("entityId", c.settings.EntityID)
	v.Set("amount", FormatCents(amountCents))
	v.Set("currency", currency)
	v.Set("paymentType", paymentType)
	if c.settings.TestMode != "" {
		v.Set("testMode", c.settings.TestMode)
	}
	return v
}

func (c *Client) versionPath(p string) string {
	return strings.TrimRight(c.settings.BaseURL, "/") + "/" + strings.Trim(c.settings.APIVersion, "/") + p
}

func (c *Client) post(ctx context.Context, u string, form url.Values) CallResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return c.unavailable(u, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, u string) CallResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.unavailable(u, err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) CallResult {
	req.Header.Set("Authorization", "Bearer "+c.settings.BearerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.unavailable(req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.unavailable(req.URL.Path, err)
	}

	// Rejected operations come back as non-2xx with a regular result body;
	// those parse and are handled by result-code classification downstream.
	if len(bytes.TrimSpace(body)) == 0 {
		c.logger.Warn("aci call returned empty body", "path", req.URL.Path, "status", resp.StatusCode)
		return CallResult{OK: false, ErrorCode: ErrCodeServiceUnavailable, ErrorMessage: "empty response"}
	}

	var parsed PaymentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn("aci call returned unparsable body", "path", req.URL.Path, "status", resp.StatusCode, "err", err)
		return CallResult{OK: false, RawBody: body, ErrorCode: ErrCodeServiceUnavailable, ErrorMessage: err.Error()}
	}
	if parsed.Result.Code == "" {
		c.logger.Warn("aci call returned no result code", "path", req.URL.Path, "status", resp.StatusCode)
		return CallResult{OK: false, RawBody: body, ErrorCode: ErrCodeServiceUnavailable, ErrorMessage: "missing result code"}
	}

	return CallResult{OK: true, Object: &parsed, RawBody: body}
}

func (c *Client) unavailable(path string, err error) CallResult {
	c.logger.Error("aci service unavailable", "path", path, "err", err)
	return CallResult{OK: false, ErrorCode: ErrCodeServiceUnavailable, ErrorMessage: err.Error()}
}
