package classify

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Classify maps err into the closed taxonomy. Inspection order: an error that
// is already classified passes through unchanged; then HTTP status, transport
// error codes, message-text heuristics, and finally UNKNOWN_ERROR.
func Classify(err error, op string) *Error {
	if err == nil {
		return nil
	}

	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}

	var serr *StatusError
	if errors.As(err, &serr) {
		return fromStatus(serr, op)
	}

	if kind, ok := transportKind(err); ok {
		return &Error{Kind: kind, Op: op, Message: err.Error(), cause: err}
	}

	return &Error{Kind: heuristicKind(err), Op: op, Message: err.Error(), cause: err}
}

func fromStatus(serr *StatusError, op string) *Error {
	e := &Error{Op: op, Message: serr.Error(), HTTPStatus: serr.Code, cause: serr}
	switch {
	case serr.Code == 429:
		e.Kind = KindRateLimit
	case serr.Code == 401 || serr.Code == 403:
		e.Kind = KindAuthentication
	case serr.Code == 404:
		e.Kind = KindNotFound
	case serr.Code == 400 || serr.Code == 422:
		e.Kind = KindValidation
	case serr.Code >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindUnknown
	}
	return e
}

func transportKind(err error) (Kind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetwork, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork, true
	}

	for _, target := range []error{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EPIPE,
		io.EOF,
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return KindNetwork, true
		}
	}

	return "", false
}

func heuristicKind(err error) Kind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "not found"):
		return KindNotFound
	case strings.Contains(msg, "required"):
		return KindValidation
	default:
		return KindUnknown
	}
}
