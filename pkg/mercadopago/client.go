// Package mercadopago is a minimal REST client for the two Mercado Pago
// operations this service needs: creating a checkout preference and fetching
// a payment resource.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.mercadopago.com"

// Client talks to the Mercado Pago REST API with a bearer access token.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// Config holds the connection details for the Mercado Pago API.
type Config struct {
	AccessToken string
	// BaseURL overrides the production API endpoint; used by tests.
	BaseURL string
}

// NewClient creates a Mercado Pago client. A zero BaseURL targets production.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// PreferenceItem is a line item in the shape the preferences API expects.
type PreferenceItem struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	PictureURL  string  `json:"picture_url,omitempty"`
	CategoryID  string  `json:"category_id,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

// PreferencePayer carries the optional buyer name fields.
type PreferencePayer struct {
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
}

// BackURLs are the redirect targets after checkout completes.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PaymentMethods restricts how the preference may be paid.
type PaymentMethods struct {
	Installments int `json:"installments"`
}

// PreferenceRequest is the body of POST /checkout/preferences.
type PreferenceRequest struct {
	ExternalReference string           `json:"external_reference"`
	Items             []PreferenceItem `json:"items"`
	Payer             *PreferencePayer `json:"payer,omitempty"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	NotificationURL   string           `json:"notification_url"`
	PaymentMethods    PaymentMethods   `json:"payment_methods"`
}

// Preference is the gateway-side record created for a checkout.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment is the authoritative payment resource fetched during webhook
// reconciliation.
type Payment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	PreferenceID      string `json:"preference_id"`
	ExternalReference string `json:"external_reference"`
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, e.Message)
}

// CreatePreference creates a checkout preference. When idempotencyKey is
// non-empty it is forwarded as X-Idempotency-Key so a retried request maps to
// the same gateway-side preference.
func (c *Client) CreatePreference(ctx context.Context, pref PreferenceRequest, idempotencyKey string) (*Preference, error) {
	body, err := json.Marshal(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build preference request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	var created Preference
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPayment fetches the payment resource for the given payment id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var payment Payment
	if err := c.do(req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// do executes the request and decodes a 2xx response into out, or maps any
// other status into an *APIError carrying the gateway's message.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to mercadopago failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Message string `json:"message"`
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if readErr == nil && json.Unmarshal(raw, &errBody) == nil && errBody.Message != "" {
			apiErr.Message = errBody.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode mercadopago response: %w", err)
	}
	return nil
}
