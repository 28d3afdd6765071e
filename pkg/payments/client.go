// Package payments implements the payment service client used by the
// charge and refund activities.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dishpatch/dishpatch/pkg/activity"
	"github.com/dishpatch/dishpatch/pkg/catalog"
	"github.com/dishpatch/dishpatch/pkg/logger"
)

const tracerName = "dishpatch.payments"

// Config holds payment service client settings.
type Config struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns client settings for a local payment service.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:1001",
		Timeout: 10 * time.Second,
	}
}

// Client talks to the payment service over HTTP. It implements the
// order.PaymentGateway interface.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
	tracer  trace.Tracer
}

// NewClient creates a payment service client. The HTTP client carries no
// global timeout; each call is bounded by its context plus cfg.Timeout.
func NewClient(cfg Config, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		log:    log,
		tracer: otel.Tracer(tracerName),
	}
}

type transactionRequest struct {
	Amount int64 `json:"amount"`
}

type transactionResponse struct {
	Message string `json:"message"`
}

// Charge debits the customer for the product. Transport failures are
// retryable; any non-200 response is a rejection and must not be retried.
func (c *Client) Charge(ctx context.Context, product catalog.Product) (string, error) {
	resp, err := c.post(ctx, "/transaction/debit", product.Price)
	if err != nil {
		return "", fmt.Errorf("payment service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return fmt.Sprintf("Customer charged %d successfully", product.Price), nil
	}

	return "", activity.NonRetryable(fmt.Errorf(
		"Payment failed with status %d. Response message: %s",
		resp.StatusCode, responseMessage(resp.Body)))
}

// Refund credits the customer back. A refund that reaches the payment
// service counts as issued regardless of status; only transport failures
// are surfaced so the activity layer can retry.
func (c *Client) Refund(ctx context.Context, product catalog.Product) (string, error) {
	resp, err := c.post(ctx, "/transaction/credit", product.Price)
	if err != nil {
		return "", fmt.Errorf("payment service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("refund returned non-200 status", "status", resp.StatusCode, "amount", product.Price)
	}
	return fmt.Sprintf("Refunded %d successfully", product.Price), nil
}

func (c *Client) post(ctx context.Context, path string, amount int64) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, "payments"+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body, err := json.Marshal(transactionRequest{Amount: amount})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	span.SetAttributes(
		attribute.String("http.url", c.baseURL+path),
		attribute.String("http.method", http.MethodPost),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func responseMessage(body io.Reader) string {
	var parsed transactionResponse
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&parsed); err != nil {
		return "unknown"
	}
	if parsed.Message == "" {
		return "unknown"
	}
	return parsed.Message
}
