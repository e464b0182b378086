package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse 表示流正常结束但没有收到任何回答内容。
	ErrEmptyResponse = errors.New("relay: stream ended without content")
	// ErrIdleTimeout 表示在空闲窗口内没有收到任何字节。
	ErrIdleTimeout = errors.New("relay: no data received within idle timeout")
	ErrEmptyQuestion = errors.New("relay: question is required")
)

// UpstreamError is returned when the bot endpoint answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("relay: upstream returned status %d: %s", e.StatusCode, e.Body)
}

// NetworkError covers requests that never completed: dial failures, broken
// bodies, idle timeouts and caller cancellation.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "relay: network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError describes one malformed stream record. It is logged and skipped.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("relay: malformed record %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
