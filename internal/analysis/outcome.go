package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/eleven-am/label-scan/internal/verdict"
)

type Kind int

const (
	KindSuccess Kind = iota
	KindRetryable
	KindFatal
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Reason string

const (
	ReasonNone           Reason = ""
	ReasonQuotaExceeded  Reason = "quota_exceeded"
	ReasonUpdateRequired Reason = "update_required"
	ReasonOffline        Reason = "offline"
	ReasonTimeout        Reason = "timeout"
	ReasonServerError    Reason = "server_error"
	ReasonConnection     Reason = "connection"
	ReasonBadResponse    Reason = "bad_response"
)

const (
	codeLimitReached   = "LIMIT_REACHED"
	codeUpdateRequired = "UPDATE_REQUIRED"
)

// Outcome is the result of one attempt against the classification service.
type Outcome struct {
	Kind   Kind
	Result verdict.Result
	Reason Reason
	Err    error
}

// classify decides whether an attempt succeeded, may be retried, or must
// stop the call. err is the transport error, if any; status and body are
// only consulted when err is nil.
//
//	transport error, caller cancelled      -> Cancelled
//	transport error, deadline              -> Retryable(timeout)
//	transport error, no route / DNS        -> Retryable(offline)
//	transport error, other                 -> Retryable(connection)
//	2xx with a decodable verdict           -> Success
//	2xx otherwise                          -> Retryable(bad_response)
//	403 LIMIT_REACHED                      -> Fatal(quota_exceeded)
//	426                                    -> Fatal(update_required)
//	anything else                          -> Retryable(server_error)
func classify(status int, body []byte, err error) Outcome {
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return Outcome{Kind: KindCancelled, Err: err}
		case isTimeout(err):
			return Outcome{Kind: KindRetryable, Reason: ReasonTimeout, Err: err}
		case isOffline(err):
			return Outcome{Kind: KindRetryable, Reason: ReasonOffline, Err: err}
		default:
			return Outcome{Kind: KindRetryable, Reason: ReasonConnection, Err: err}
		}
	}

	if status >= 200 && status < 300 {
		var result verdict.Result
		if err := json.Unmarshal(body, &result); err != nil {
			return Outcome{Kind: KindRetryable, Reason: ReasonBadResponse, Err: fmt.Errorf("decode verdict: %w", err)}
		}
		return Outcome{Kind: KindSuccess, Result: result.Normalize()}
	}

	switch {
	case status == http.StatusForbidden && hasErrorCode(body, codeLimitReached):
		return Outcome{Kind: KindFatal, Reason: ReasonQuotaExceeded, Err: ErrQuotaExceeded}
	case status == http.StatusUpgradeRequired:
		return Outcome{Kind: KindFatal, Reason: ReasonUpdateRequired, Err: ErrUpdateRequired}
	default:
		return Outcome{Kind: KindRetryable, Reason: ReasonServerError, Err: fmt.Errorf("classifier returned status %d", status)}
	}
}

func hasErrorCode(body []byte, code string) bool {
	var we wireError
	if err := json.Unmarshal(body, &we); err == nil {
		if we.Error == code || we.Code == code {
			return true
		}
	}
	return bytes.Contains(body, []byte(code))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isOffline(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETDOWN)
}
