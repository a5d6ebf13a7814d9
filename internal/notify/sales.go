package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/pkg/apperror"
)

const targetSales = "sales"

// SalesStatus is the order status vocabulary of the sales service.
type SalesStatus string

const (
	SalesStatusPaid     SalesStatus = "PAGADA"
	SalesStatusRejected SalesStatus = "RECHAZADA"
)

// SalesStatusFor maps a local status to the sales service. Only approvals and rejections are sent.
func SalesStatusFor(status entity.TransactionStatus) (SalesStatus, bool) {
	switch status {
	case entity.TransactionStatusApproved:
		return SalesStatusPaid, true
	case entity.TransactionStatusRejected:
		return SalesStatusRejected, true
	}
	return "", false
}

type SalesClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func NewSalesClient(baseURL string, timeout time.Duration, httpClient *http.Client) *SalesClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &SalesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    httpClient,
	}
}

// UpdateOrderStatus sends PUT /orders/{orderCode}/status.
func (c *SalesClient) UpdateOrderStatus(ctx context.Context, orderCode string, status SalesStatus) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]SalesStatus{"status": status})
	if err != nil {
		return c.fail(orderCode, err)
	}

	endpoint := fmt.Sprintf("%s/orders/%s/status", c.baseURL, url.PathEscape(orderCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return c.fail(orderCode, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(orderCode, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(orderCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

func (c *SalesClient) fail(orderCode string, err error) error {
	return &apperror.DownstreamNotificationError{OrderCode: orderCode, Target: targetSales, Err: err}
}
