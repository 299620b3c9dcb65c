package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StatusError is a non-2xx provider response. Status carries the provider
// status string, for example RESOURCE_EXHAUSTED.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = snippet(e.Body)
	}
	if e.Status != "" {
		return fmt.Sprintf("genai request: http %d %s: %s", e.StatusCode, e.Status, detail)
	}
	return fmt.Sprintf("genai request: http %d: %s", e.StatusCode, detail)
}

// RetryHint exposes the provider's requested delay, if any.
func (e *StatusError) RetryHint() (time.Duration, bool) {
	return e.RetryAfter, e.RetryAfter > 0
}

// HTTPStatus exposes the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// ProviderStatus exposes the provider status string.
func (e *StatusError) ProviderStatus() string {
	return e.Status
}

type apiErrorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var retryDelayPattern = regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)s"`)

func newStatusError(resp *http.Response, body []byte) *StatusError {
	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		statusErr.Status = strings.TrimSpace(envelope.Error.Status)
		statusErr.Message = strings.TrimSpace(envelope.Error.Message)
	}
	if delay, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
		statusErr.RetryAfter = delay
	} else if delay, ok := parseRetryDelay(statusErr.Body); ok {
		statusErr.RetryAfter = delay
	}
	return statusErr
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// parseRetryDelay extracts google.rpc.RetryInfo delays such as "retryDelay":"19s".
func parseRetryDelay(body string) (time.Duration, bool) {
	match := retryDelayPattern.FindStringSubmatch(body)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// transient reports whether a transport-level retry may help. Rate limits are
// excluded so the caller decides how long to wait.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}
