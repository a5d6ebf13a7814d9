package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError means the input was rejected before any store or gateway call.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func NewValidation(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func NewValidationFields(fields map[string]string) *ValidationError {
	return &ValidationError{Message: "invalid request", Fields: fields}
}

// GatewayError is a failed call to the payment gateway.
type GatewayError struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway error [%s] (http %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error [%s]: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NotFound reports whether the gateway answered 404.
func (e *GatewayError) NotFound() bool { return e.StatusCode == 404 }

// NotFoundError means a transaction or gateway payment does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func NewNotFound(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// DownstreamNotificationError is always logged and discarded.
type DownstreamNotificationError struct {
	OrderCode string
	Target    string
	Err       error
}

func (e *DownstreamNotificationError) Error() string {
	return fmt.Sprintf("notify %s for order %s: %v", e.Target, e.OrderCode, e.Err)
}

func (e *DownstreamNotificationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func AsGateway(err error) (*GatewayError, bool) {
	var target *GatewayError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
