package webhook

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfigurationMissing marks operations refused because their endpoint is not set.
	ErrConfigurationMissing = errors.New("webhook endpoint not configured")
	// ErrNetworkUnreachable marks transport-level failures (DNS, refused connection, CORS-blocking proxies).
	ErrNetworkUnreachable = errors.New("webhook unreachable")
	// ErrResponseParse marks non-empty response bodies that are not JSON.
	ErrResponseParse = errors.New("webhook response is not valid JSON")
)

// NetworkHint is shown next to transport failures.
const NetworkHint = "check that the webhook URL is correct and reachable from this host, and that any proxy or CORS policy in front of it allows the request"

// ConfigError reports an operation whose endpoint is unset or unusable.
type ConfigError struct {
	Op       string
	Endpoint string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s endpoint %s", e.Op, e.Endpoint, e.Reason)
	}
	return fmt.Sprintf("%s: %s endpoint is not configured", e.Op, e.Endpoint)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigurationMissing
}

// NetworkError wraps a failed round trip.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: could not reach %s: %v (%s)", e.Op, e.URL, e.Err, NetworkHint)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkUnreachable
}

// APIError represents a non-2xx webhook response.
type APIError struct {
	Op         string
	Status     int
	StatusText string
	Body       string
}

func (e *APIError) Error() string {
	text := e.StatusText
	if text == "" {
		text = http.StatusText(e.Status)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: webhook returned %d %s: %s", e.Op, e.Status, text, e.Body)
	}
	return fmt.Sprintf("%s: webhook returned %d %s", e.Op, e.Status, text)
}

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Op   string
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrResponseParse, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrResponseParse
}

// ErrorKind classifies adapter failures for presentation.
type ErrorKind string

const (
	KindConfigurationMissing ErrorKind = "configuration_missing"
	KindNetworkUnreachable   ErrorKind = "network_unreachable"
	KindHTTP                 ErrorKind = "http_error"
	KindResponseParse        ErrorKind = "response_parse"
	KindUnknown              ErrorKind = "unknown"
)

// Kind classifies err. Wrapped errors are unwrapped.
func Kind(err error) ErrorKind {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigurationMissing):
		return KindConfigurationMissing
	case errors.Is(err, ErrNetworkUnreachable):
		return KindNetworkUnreachable
	case errors.As(err, &apiErr):
		return KindHTTP
	case errors.Is(err, ErrResponseParse):
		return KindResponseParse
	default:
		return KindUnknown
	}
}
