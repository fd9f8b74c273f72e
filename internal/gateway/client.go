package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

var ErrGatewayRequest = errors.New("payment gateway request failed")

// Gateway status vocabulary for payment links and webhooks.
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
	StatusRefunded  = "REFUNDED"
)

type LinkItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// LinkRequest asks the gateway for a hosted checkout link. Amount is in the
// smallest currency unit.
type LinkRequest struct {
	OrderCode   int64      `json:"orderCode"`
	Amount      int64      `json:"amount"`
	Description string     `json:"description"`
	Items       []LinkItem `json:"items"`
	ReturnURL   string     `json:"returnUrl"`
	CancelURL   string     `json:"cancelUrl"`
	Signature   string     `json:"signature"`
}

type LinkResponse struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	OrderCode     int64  `json:"orderCode"`
	Status        string `json:"status"`
}

// WebhookPayload is the gateway's payment notification. Delivery is
// at-least-once and possibly out of order; the settlement layer must treat
// replays as no-ops.
type WebhookPayload struct {
	OrderCode int64  `json:"orderCode"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Signature string `json:"signature"`
}

type linkEnvelope struct {
	Code string       `json:"code"`
	Desc string       `json:"desc"`
	Data LinkResponse `json:"data"`
}

type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[*LinkResponse]
}

func NewClient(baseURL, clientID, apiKey, checksumKey string, timeout time.Duration) *Client {
	breaker := gobreaker.NewCircuitBreaker[*LinkResponse](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL:     baseURL,
		clientID:    clientID,
		apiKey:      apiKey,
		checksumKey: checksumKey,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     breaker,
	}
}

// CreateLink requests a payment link. This is a plain external call: it holds
// no transaction and proves nothing about payment; the webhook settles that.
// A circuit breaker guards the gateway so a dead provider fails fast instead
// of tying up checkout requests.
func (c *Client) CreateLink(ctx context.Context, req *LinkRequest) (*LinkResponse, error) {
	link, err := c.breaker.Execute(func() (*LinkResponse, error) {
		return c.createLink(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	return link, err
}

func (c *Client) createLink(ctx context.Context, req *LinkRequest) (*LinkResponse, error) {
	req.Signature = Sign(map[string]string{
		"amount":      fmt.Sprintf("%d", req.Amount),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   fmt.Sprintf("%d", req.OrderCode),
		"returnUrl":   req.ReturnURL,
	}, c.checksumKey)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal link request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build link request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrGatewayRequest, resp.StatusCode)
	}

	var envelope linkEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode link response: %w", err)
	}
	if envelope.Code != "00" {
		return nil, fmt.Errorf("%w: gateway code %s (%s)", ErrGatewayRequest, envelope.Code, envelope.Desc)
	}
	return &envelope.Data, nil
}
