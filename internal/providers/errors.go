package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel markers classifying provider failures. The orchestrator matches
// on these to decide whether to skip, open a circuit, or fall through to the
// next source.
var (
	// ErrNotFound: the entity is absent upstream. Skip until the next
	// natural TTL window.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited: the provider rejected the call for quota reasons.
	// Opens that provider's circuit breaker.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient: network trouble or a 5xx. Treated as "no data this
	// attempt"; retried only by the next natural invocation.
	ErrTransient = errors.New("transient failure")
	// ErrForbidden: the provider rejected credentials or region.
	ErrForbidden = errors.New("forbidden")
	// ErrAmbiguous: a disambiguation gate failed; the candidate is
	// discarded and the pipeline falls through.
	ErrAmbiguous = errors.New("ambiguous candidate")
	// ErrMalformed: unexpected payload shape. Filtered field-by-field,
	// never aborts a whole enrichment.
	ErrMalformed = errors.New("malformed payload")
)

// Wrap builds an error message that includes provider context while tagging
// it with the provided marker for later classification.
func Wrap(marker error, provider, operation, message string, err error) error {
	detail := buildDetail(provider, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(provider, operation, message string) string {
	parts := make([]string, 0, 3)
	if provider = strings.TrimSpace(provider); provider != "" {
		parts = append(parts, provider)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "provider failure"
	}
	return strings.Join(parts, ": ")
}

// IsNotFound reports whether err marks the entity as absent upstream.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited reports whether err represents a quota rejection, either via
// the sentinel or recognizable response text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "429") || strings.Contains(message, "rate limit") {
		return true
	}
	return strings.Contains(message, "quota") && strings.Contains(message, "exceeded")
}

// IsTransient reports whether err warrants treating the attempt as "no data"
// rather than a hard failure (timeouts, connection errors, 5xx).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, code := range []string{"502", "503", "504"} {
		if strings.Contains(message, code) {
			return true
		}
	}
	for _, token := range []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"temporary failure",
		"awaiting headers",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
