// Package payments holds the HTTP client for the external payment
// processor (a PayPal-style orders API). The split between seller payout and
// platform fee is declared on the order; the processor executes it
// atomically at capture time.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	requestTimeout = 10 * time.Second
	// Refresh the cached access token slightly before the processor expires it.
	tokenExpirySlack = 60 * time.Second
)

type Client struct {
	httpClient         *http.Client
	baseURL            string
	clientID           string
	clientSecret       string
	platformMerchantID string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(baseURL, clientID, clientSecret, platformMerchantID string) *Client {
	return &Client{
		httpClient:         &http.Client{Timeout: requestTimeout},
		baseURL:            strings.TrimRight(baseURL, "/"),
		clientID:           clientID,
		clientSecret:       clientSecret,
		platformMerchantID: platformMerchantID,
	}
}

// OrderRequest describes one marketplace order: gross amount to capture from
// the buyer, with PlatformFee routed to the platform account and the
// remainder to the seller's merchant account.
type OrderRequest struct {
	ListingID        string
	BuyerID          string
	SellerID         string
	SellerMerchantID string
	Amount           float64
	PlatformFee      float64
	Currency         string
}

// APIError is a non-2xx answer from the processor.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment processor returned %d: %s", e.Status, e.Body)
}

// Correlation is the application-supplied metadata round-tripped through the
// processor: set as the order's custom id at creation, read back from the
// capture webhook.
type Correlation struct {
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id,omitempty"`
	SellerID  string `json:"seller_id,omitempty"`
}

func (c Correlation) Encode() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeCorrelation parses a custom id previously produced by Encode. A bare
// non-JSON value is treated as a plain listing id, which keeps orders created
// out-of-band resolvable.
func DecodeCorrelation(customID string) Correlation {
	var c Correlation
	if err := json.Unmarshal([]byte(customID), &c); err != nil {
		return Correlation{ListingID: customID}
	}
	return c
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID        string              `json:"reference_id"`
	CustomID           string              `json:"custom_id"`
	Amount             amount              `json:"amount"`
	Payee              *payee              `json:"payee,omitempty"`
	PaymentInstruction *paymentInstruction `json:"payment_instruction,omitempty"`
}

type payee struct {
	MerchantID string `json:"merchant_id"`
}

type paymentInstruction struct {
	PlatformFees     []platformFee `json:"platform_fees,omitempty"`
	DisbursementMode string        `json:"disbursement_mode,omitempty"`
}

type platformFee struct {
	Amount amount `json:"amount"`
	Payee  *payee `json:"payee,omitempty"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder creates a capture-intent order and returns the processor's
// order id. Callers must treat a timeout here as a manual-review failure,
// never a blind retry: the order may exist on the processor side.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	correlation := Correlation{
		ListingID: req.ListingID,
		BuyerID:   req.BuyerID,
		SellerID:  req.SellerID,
	}

	unit := purchaseUnit{
		ReferenceID: req.ListingID,
		CustomID:    correlation.Encode(),
		Amount:      amount{CurrencyCode: req.Currency, Value: formatAmount(req.Amount)},
		Payee:       &payee{MerchantID: req.SellerMerchantID},
	}
	if req.PlatformFee > 0 {
		unit.PaymentInstruction = &paymentInstruction{
			PlatformFees: []platformFee{{
				Amount: amount{CurrencyCode: req.Currency, Value: formatAmount(req.PlatformFee)},
				Payee:  &payee{MerchantID: c.platformMerchantID},
			}},
			DisbursementMode: "INSTANT",
		}
	}

	body, err := json.Marshal(createOrderRequest{
		Intent:        "CAPTURE",
		PurchaseUnits: []purchaseUnit{unit},
	})
	if err != nil {
		return "", fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var out createOrderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("order response missing id")
	}
	return out.ID, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenExpirySlack)
	return c.accessToken, nil
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
