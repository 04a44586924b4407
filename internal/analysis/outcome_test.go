package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		err        error
		wantKind   Kind
		wantReason Reason
	}{
		{"success", 200, validBody, nil, KindSuccess, ReasonNone},
		{"undecodable success", 200, "not json", nil, KindRetryable, ReasonBadResponse},
		{"quota", 403, `{"error":"LIMIT_REACHED"}`, nil, KindFatal, ReasonQuotaExceeded},
		{"forbidden without marker", 403, `{"error":"FORBIDDEN"}`, nil, KindRetryable, ReasonServerError},
		{"update required", 426, `{"error":"UPDATE_REQUIRED"}`, nil, KindFatal, ReasonUpdateRequired},
		{"server error", 500, "", nil, KindRetryable, ReasonServerError},
		{"bad request", 400, "", nil, KindRetryable, ReasonServerError},
		{"cancelled", 0, "", fmt.Errorf("post: %w", context.Canceled), KindCancelled, ReasonNone},
		{"deadline", 0, "", fmt.Errorf("post: %w", context.DeadlineExceeded), KindRetryable, ReasonTimeout},
		{"dns", 0, "", fmt.Errorf("post: %w", &net.DNSError{Err: "no such host"}), KindRetryable, ReasonOffline},
		{"refused", 0, "", errors.New("connection refused"), KindRetryable, ReasonConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(tt.status, []byte(tt.body), tt.err)
			if out.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, out.Kind)
			}
			if out.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, out.Reason)
			}
		})
	}
}

func TestClassify_FatalErrors(t *testing.T) {
	if out := classify(403, []byte(`{"error":"LIMIT_REACHED"}`), nil); !errors.Is(out.Err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", out.Err)
	}
	if out := classify(426, nil, nil); !errors.Is(out.Err, ErrUpdateRequired) {
		t.Errorf("expected ErrUpdateRequired, got %v", out.Err)
	}
}

func TestFailureMessage_Priority(t *testing.T) {
	tests := []struct {
		reason       Reason
		allowOffline bool
		want         messageKey
	}{
		{ReasonOffline, true, msgOffline},
		{ReasonOffline, false, msgConnection},
		{ReasonTimeout, true, msgTimeout},
		{ReasonServerError, true, msgConnection},
		{ReasonBadResponse, true, msgConnection},
	}

	for _, tt := range tests {
		got := failureMessage("en", tt.reason, tt.allowOffline)
		if got != message("en", tt.want) {
			t.Errorf("%s/%v: got %q", tt.reason, tt.allowOffline, got)
		}
	}
}
