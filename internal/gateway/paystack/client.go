package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tolusimi/naiabook/internal/domain"
)

var (
	ErrGateway          = errors.New("payment gateway error")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Client talks to the Paystack REST API. Amounts cross the wire in kobo,
// which is what domain.Money already carries.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// GenerateReference produces a gateway-side transaction reference,
// distinct from the customer-facing booking reference.
func GenerateReference() string {
	id := uuid.New()
	return "NAIA-" + strings.ToUpper(hex.EncodeToString(id[:6]))
}

type InitializeRequest struct {
	Reference   string
	Email       string
	Amount      domain.Money
	CallbackURL string
	BookingRef  string
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize opens a transaction on the gateway and returns the hosted
// payment page URL the customer is redirected to.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := map[string]any{
		"reference":    req.Reference,
		"email":        req.Email,
		"amount":       req.Amount.Kobo(),
		"currency":     domain.DefaultCurrency,
		"callback_url": req.CallbackURL,
		"metadata": map[string]any{
			"booking_reference": req.BookingRef,
		},
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := c.call(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

type VerifyResult struct {
	Reference     string
	Status        string
	Amount        domain.Money
	Channel       string
	CardType      string
	CardLast4     string
	GatewayTxID   int64
	PaidAt        string
	FailureReason string
}

func (v *VerifyResult) Succeeded() bool { return v.Status == "success" }

// Verify fetches the authoritative transaction state from the gateway.
// Callers treat anything other than "success" as not paid.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	var data struct {
		ID              int64  `json:"id"`
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		Amount          int64  `json:"amount"`
		Channel         string `json:"channel"`
		GatewayResponse string `json:"gateway_response"`
		PaidAt          string `json:"paid_at"`
		Authorization   struct {
			CardType string `json:"card_type"`
			Last4    string `json:"last4"`
		} `json:"authorization"`
	}
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Reference:   data.Reference,
		Status:      data.Status,
		Amount:      domain.MoneyFromKobo(data.Amount),
		Channel:     data.Channel,
		CardType:    strings.TrimSpace(data.Authorization.CardType),
		CardLast4:   data.Authorization.Last4,
		GatewayTxID: data.ID,
		PaidAt:      data.PaidAt,
	}
	if !result.Succeeded() {
		result.FailureReason = data.GatewayResponse
	}
	return result, nil
}

type RefundResult struct {
	Reference string
	Amount    domain.Money
	Status    string
}

// Refund requests a full or partial refund against a settled transaction.
func (c *Client) Refund(ctx context.Context, reference string, amount domain.Money) (*RefundResult, error) {
	body := map[string]any{
		"transaction": reference,
		"amount":      amount.Kobo(),
	}

	var data struct {
		Status      string `json:"status"`
		Amount      int64  `json:"amount"`
		Transaction struct {
			Reference string `json:"reference"`
		} `json:"transaction"`
	}
	if err := c.call(ctx, http.MethodPost, "/refund", body, &data); err != nil {
		return nil, err
	}
	return &RefundResult{
		Reference: data.Transaction.Reference,
		Amount:    domain.MoneyFromKobo(data.Amount),
		Status:    data.Status,
	}, nil
}

// ValidateSignature checks the HMAC-SHA512 webhook signature. Missing or
// malformed signatures fail closed.
func (c *Client) ValidateSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

const EventChargeSuccess = "charge.success"

// ParseWebhook validates the signature first and only then decodes the body.
func (c *Client) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	if !c.ValidateSignature(body, signature) {
		return nil, ErrInvalidSignature
	}
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return &event, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: decode response (http %d)", ErrGateway, resp.StatusCode)
	}
	if resp.StatusCode >= 400 || !envelope.Status {
		return fmt.Errorf("%w: %s (http %d)", ErrGateway, envelope.Message, resp.StatusCode)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: decode payload: %v", ErrGateway, err)
		}
	}
	return nil
}
