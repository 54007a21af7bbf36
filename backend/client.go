package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/pricing"
)

// =============================================================================
// HTTP CLIENT - Booking REST API
// =============================================================================

// Client implements Backend over the booking system's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient creates a client. A zero timeout leaves the transport default.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithField("component", "backend.client"),
	}
}

var _ Backend = (*Client)(nil)

func (c *Client) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	var out Reservation
	if err := c.do(ctx, "getReservation", http.MethodGet, "/reservations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, notFoundAs(err, "reservation", id)
	}
	return &out, nil
}

func (c *Client) GetTour(ctx context.Context, tourID string) (*Tour, error) {
	var out Tour
	if err := c.do(ctx, "getTour", http.MethodGet, "/tours/"+url.PathEscape(tourID), nil, &out); err != nil {
		return nil, notFoundAs(err, "tour", tourID)
	}
	return &out, nil
}

func (c *Client) ListPaymentTransactions(ctx context.Context, reservationID string, statuses ...ledger.Status) ([]ledger.PaymentTransaction, error) {
	path := "/reservations/" + url.PathEscape(reservationID) + "/payment-transactions"
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		path += "?status=" + url.QueryEscape(strings.Join(names, ","))
	}

	var out []ledger.PaymentTransaction
	if err := c.do(ctx, "listPaymentTransactions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePaymentTransaction(ctx context.Context, tx ledger.PaymentTransaction) (ledger.PaymentTransaction, error) {
	var out ledger.PaymentTransaction
	if err := c.do(ctx, "createPaymentTransaction", http.MethodPost, "/payment-transactions", tx, &out); err != nil {
		return ledger.PaymentTransaction{}, err
	}
	return out, nil
}

func (c *Client) UpdatePaymentTransaction(ctx context.Context, id string, patch ledger.Patch) (ledger.PaymentTransaction, error) {
	var out ledger.PaymentTransaction
	if err := c.do(ctx, "updatePaymentTransaction", http.MethodPatch, "/payment-transactions/"+url.PathEscape(id), patch, &out); err != nil {
		return ledger.PaymentTransaction{}, notFoundAs(err, "payment transaction", id)
	}
	return out, nil
}

func (c *Client) RequestRefund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	var out RefundResponse
	if err := c.do(ctx, "requestRefund", http.MethodPost, "/refunds", req, &out); err != nil {
		return RefundResponse{}, err
	}
	return out, nil
}

func (c *Client) GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	var out PaymentMethod
	if err := c.do(ctx, "getPaymentMethod", http.MethodGet, "/payment-methods/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, notFoundAs(err, "payment method", id)
	}
	return &out, nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.do(ctx, "getPaymentIntent", http.MethodGet, "/payment-intents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, notFoundAs(err, "payment intent", id)
	}
	return &out, nil
}

func (c *Client) ListAddonsForTour(ctx context.Context, tourID string) ([]pricing.Addon, error) {
	var out []pricing.Addon
	if err := c.do(ctx, "listAddonsForTour", http.MethodGet, "/tours/"+url.PathEscape(tourID)+"/addons", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListReservationAddons(ctx context.Context, reservationID string) ([]ReservationAddon, error) {
	var out []ReservationAddon
	if err := c.do(ctx, "listReservationAddons", http.MethodGet, "/reservations/"+url.PathEscape(reservationID)+"/addons", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTierPricing(ctx context.Context, tourID string) ([]pricing.TierPricingPolicy, error) {
	var out []pricing.TierPricingPolicy
	if err := c.do(ctx, "getTierPricing", http.MethodGet, "/tours/"+url.PathEscape(tourID)+"/tier-pricing", nil, &out); err != nil {
		// A tour without a policy is priced flat.
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCustomLineItems(ctx context.Context, reservationID string) ([]pricing.CustomLineItem, error) {
	var out []pricing.CustomLineItem
	if err := c.do(ctx, "listCustomLineItems", http.MethodGet, "/reservations/"+url.PathEscape(reservationID)+"/custom-line-items", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GenerateVoucher(ctx context.Context, req VoucherRequest) (Voucher, error) {
	// The voucher endpoint wraps its payload: {"voucher": {...}}.
	var out struct {
		Voucher Voucher `json:"voucher"`
	}
	if err := c.do(ctx, "generateVoucher", http.MethodPost, "/vouchers", req, &out); err != nil {
		return Voucher{}, err
	}
	v := out.Voucher
	if v.Code == "" {
		return Voucher{}, &core.ExternalServiceError{Op: "generateVoucher", Err: errors.New("response carried no voucher code")}
	}
	if v.Amount.IsZero() {
		v.Amount = req.Amount
	}
	if v.OriginReservationID == "" {
		v.OriginReservationID = req.OriginReservationID
	}
	return v, nil
}

func (c *Client) ListReservationGuides(ctx context.Context, reservationID string) ([]Guide, error) {
	var out []Guide
	if err := c.do(ctx, "listReservationGuides", http.MethodGet, "/reservations/"+url.PathEscape(reservationID)+"/guides", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// errHTTPNotFound marks a 404 until the caller names what was missing.
var errHTTPNotFound = fmt.Errorf("http 404: %w", core.ErrNotFound)

// do sends body as JSON and decodes the response into out. Transport
// failures and non-2xx statuses come back as *core.ExternalServiceError,
// except 404 which comes back as core.ErrNotFound.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.ExternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"op":       op,
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("backend call")

	if resp.StatusCode == http.StatusNotFound {
		return errHTTPNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &core.ExternalServiceError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(msg))),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func notFoundAs(err error, kind, id string) error {
	if err == errHTTPNotFound {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return err
}
