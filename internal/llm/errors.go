package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// ErrorKind is the closed taxonomy every gateway error is classified into.
type ErrorKind int

const (
	KindRateLimited ErrorKind = iota
	KindUnavailable
	KindTimeout
	KindNetwork
	KindMalformed
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed"
	default:
		return "fatal"
	}
}

type GatewayError struct {
	Kind ErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (%s): %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether the retry policy may re-attempt the call.
func (e *GatewayError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindUnavailable, KindTimeout, KindNetwork:
		return true
	}
	return false
}

// Classify maps a provider error onto the closed taxonomy. It lives at the
// gateway boundary so nothing above it ever sniffs error strings.
func Classify(err error) *GatewayError {
	if err == nil {
		return nil
	}

	var gw *GatewayError
	if errors.As(err, &gw) {
		return gw
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Kind: KindTimeout, Err: err}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyStatus(gErr.Code, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &GatewayError{Kind: KindTimeout, Err: err}
		}
		return &GatewayError{Kind: KindNetwork, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource_exhausted"):
		return &GatewayError{Kind: KindRateLimited, Err: err}
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return &GatewayError{Kind: KindNetwork, Err: err}
	}

	return &GatewayError{Kind: KindFatal, Err: err}
}

func classifyStatus(status int, err error) *GatewayError {
	switch {
	case status == 429:
		return &GatewayError{Kind: KindRateLimited, Err: err}
	case status >= 500:
		return &GatewayError{Kind: KindUnavailable, Err: err}
	}
	return &GatewayError{Kind: KindFatal, Err: err}
}
