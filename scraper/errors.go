package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aluiziolira/go-scrape-tickets/detect"
)

// ErrCancelled marks a scrape stopped by caller cancellation. Never retried.
var ErrCancelled = errors.New("cancelled")

// Class buckets an error for the rate limiter's backoff policy.
type Class int

const (
	ClassGeneric Class = iota
	ClassServer
	ClassRateLimited
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target throttled the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrServer indicates a 5xx response from the target.
type ErrServer struct {
	Err error
}

func (e ErrServer) Error() string {
	return fmt.Errorf("server: %w", e.Err).Error()
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// ErrBlocked indicates an anti-bot challenge stood in front of the content.
type ErrBlocked struct {
	Category detect.Category
}

func (e ErrBlocked) Error() string {
	return fmt.Sprintf("blocked: %s", e.Category)
}

// classifyTransport wraps a fetch error in its taxonomy type.
func classifyTransport(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= 500:
			return ErrServer{Err: wrapped}
		}
	}

	return err
}

// classOf maps a taxonomy error to the limiter's backoff class.
func classOf(err error) Class {
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return ClassRateLimited
	}
	var blocked ErrBlocked
	if errors.As(err, &blocked) {
		// A challenge is the site throttling us, with extra steps.
		return ClassRateLimited
	}
	var server ErrServer
	if errors.As(err, &server) {
		return ClassServer
	}
	return ClassGeneric
}

// errorTypeLabel names an error for metrics and result reporting.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var server ErrServer
	if errors.As(err, &server) {
		return "server"
	}
	var blocked ErrBlocked
	if errors.As(err, &blocked) {
		return "blocked"
	}
	if errors.Is(err, ErrCancelled) {
		return "cancelled"
	}
	return "other"
}
