package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-service/pkg/apperror"

	"github.com/google/uuid"
)

const maxErrorBody = 64 << 10

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client talks to the payment gateway REST API. Credentials are bound at construction.
type Client struct {
	baseURL     string
	accessToken string
	timeout     time.Duration
	http        *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if cfg.AccessToken == "" {
		return nil, errors.New("gateway access token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		timeout:     cfg.Timeout,
		http:        httpClient,
	}, nil
}

func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", req, &pref); err != nil {
		return nil, err
	}
	if pref.ID == "" {
		return nil, &apperror.GatewayError{Code: "invalid_response", Message: "preference without id"}
	}
	return &pref, nil
}

func (c *Client) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+strconv.FormatInt(id, 10), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &apperror.GatewayError{
				Code:      "timeout",
				Message:   fmt.Sprintf("gateway %s %s timed out", method, path),
				Retryable: true,
				Err:       err,
			}
		}
		return &apperror.GatewayError{
			Code:      "transport",
			Message:   "gateway unreachable",
			Retryable: true,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperror.GatewayError{
			Code:       "invalid_response",
			Message:    "gateway returned an unreadable body",
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var doc apiError
	_ = json.Unmarshal(raw, &doc)

	gwErr := &apperror.GatewayError{
		Code:       doc.Error,
		Message:    doc.Message,
		StatusCode: resp.StatusCode,
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
	if gwErr.Code == "" {
		gwErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	if gwErr.Message == "" {
		gwErr.Message = strings.TrimSpace(string(raw))
	}
	if gwErr.Message == "" {
		gwErr.Message = http.StatusText(resp.StatusCode)
	}
	return gwErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
