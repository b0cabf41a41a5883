package dberror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestDealdesk_DBError_Classify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), ErrorTypeConnectivity},
		{"pgx pool closed", errors.New("pool is closed"), ErrorTypeConnectivity},
		{"clickhouse conn closed", errors.New("ch: conn closed"), ErrorTypeConnectivity},
		{"broken pipe", errors.New("write: broken pipe"), ErrorTypeConnectivity},
		{"pg statement timeout", errors.New("ERROR: canceling statement due to statement timeout (SQLSTATE 57014)"), ErrorTypeTimeout},
		{"clickhouse max_execution_time", errors.New("code: 159, message: Timeout exceeded: max_execution_time"), ErrorTypeTimeout},
		{"context deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{"pg auth", errors.New("FATAL: password authentication failed for user \"dealdesk\""), ErrorTypeAuth},
		{"clickhouse auth", errors.New("code: 516, message: default: Authentication failed"), ErrorTypeAuth},
		{"pg syntax", errors.New("ERROR: syntax error at or near \"FORM\" (SQLSTATE 42601)"), ErrorTypeQuery},
		{"pg missing relation", errors.New("ERROR: relation \"facilitie\" does not exist (SQLSTATE 42P01)"), ErrorTypeQuery},
		{"clickhouse unknown identifier", errors.New("code: 47, message: Unknown identifier: statee"), ErrorTypeQuery},
		{"unclassified", errors.New("something odd happened"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDealdesk_DBError_Classify_NetError(t *testing.T) {
	t.Parallel()
	timeoutErr := &net.OpError{Op: "read", Err: &timeoutError{}}
	if got := Classify(timeoutErr); got != ErrorTypeTimeout {
		t.Errorf("Classify(net timeout) = %v, want ErrorTypeTimeout", got)
	}

	connErr := &net.OpError{Op: "dial", Err: errors.New("refused")}
	if got := Classify(connErr); got != ErrorTypeConnectivity {
		t.Errorf("Classify(net error) = %v, want ErrorTypeConnectivity", got)
	}
}

func TestDealdesk_DBError_IsTransient(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connectivity", errors.New("connection refused"), true},
		{"server timeout", errors.New("statement timeout"), true},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"auth", errors.New("password authentication failed"), false},
		{"query", errors.New("syntax error at or near"), false},
		{"unknown", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDealdesk_DBError_UserMessage(t *testing.T) {
	t.Parallel()
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q, want empty", got)
	}
	if got := UserMessage(errors.New("connection refused")); got == "" {
		t.Error("UserMessage(connectivity) is empty")
	}
	// The raw error text must never leak into the user-facing message.
	raw := errors.New("FATAL: password authentication failed for user \"dealdesk\"")
	if got := UserMessage(raw); got == raw.Error() {
		t.Error("UserMessage leaked the raw error")
	}
}

// timeoutError implements net.Error with Timeout() == true.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return false }
