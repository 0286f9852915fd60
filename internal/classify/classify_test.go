package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetError struct{ timeout bool }

func (e fakeNetError) Error() string   { return "dial tcp 10.0.0.1:443: fake failure" }
func (e fakeNetError) Timeout() bool   { return e.timeout }
func (e fakeNetError) Temporary() bool { return false }

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil, "op"))
}

func TestClassify_HTTPStatus(t *testing.T) {
	tests := []struct {
		code          int
		wantKind      Kind
		wantRetryable bool
	}{
		{429, KindRateLimit, true},
		{401, KindAuthentication, false},
		{403, KindAuthentication, false},
		{404, KindNotFound, false},
		{400, KindValidation, false},
		{422, KindValidation, false},
		{500, KindServer, true},
		{503, KindServer, true},
		{418, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := fmt.Errorf("submit: %w", &StatusError{Code: tt.code, Body: "nope"})

			cerr := Classify(err, "ledger.submitBatch")

			require.NotNil(t, cerr)
			assert.Equal(t, tt.wantKind, cerr.Kind)
			assert.Equal(t, tt.wantRetryable, cerr.Retryable())
			assert.Equal(t, tt.code, cerr.HTTPStatus)
			assert.Equal(t, "ledger.submitBatch", cerr.Op)
		})
	}
}

func TestClassify_Transport(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
	}{
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			wantKind: KindTimeout,
		},
		{
			name:     "net timeout",
			err:      fakeNetError{timeout: true},
			wantKind: KindTimeout,
		},
		{
			name:     "dns failure",
			err:      &net.DNSError{Err: "no such host", Name: "api.ynab.com"},
			wantKind: KindNetwork,
		},
		{
			name:     "op error",
			err:      &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")},
			wantKind: KindNetwork,
		},
		{
			name:     "connection refused",
			err:      fmt.Errorf("dial: %w", syscall.ECONNREFUSED),
			wantKind: KindNetwork,
		},
		{
			name:     "unexpected eof",
			err:      fmt.Errorf("read body: %w", io.ErrUnexpectedEOF),
			wantKind: KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := Classify(tt.err, "op")

			require.NotNil(t, cerr)
			assert.Equal(t, tt.wantKind, cerr.Kind)
			assert.True(t, cerr.Retryable())
		})
	}
}

func TestClassify_MessageHeuristics(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
	}{
		{
			name:     "timed out text",
			err:      errors.New("operation timed out waiting for response"),
			wantKind: KindTimeout,
		},
		{
			name:     "not found text",
			err:      errors.New("budget not found"),
			wantKind: KindNotFound,
		},
		{
			name:     "required text",
			err:      errors.New("account_id is required"),
			wantKind: KindValidation,
		},
		{
			name:     "anything else",
			err:      errors.New("splines failed to reticulate"),
			wantKind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := Classify(tt.err, "op")

			require.NotNil(t, cerr)
			assert.Equal(t, tt.wantKind, cerr.Kind)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	original := NewError(KindValidation, "ledger.submitOne", "payee too long")

	reclassified := Classify(fmt.Errorf("outer: %w", original), "other.op")

	assert.Same(t, original, reclassified)
	assert.Equal(t, KindValidation, reclassified.Kind)
}

func TestError_Unwrap(t *testing.T) {
	cause := &StatusError{Code: 500, Body: "boom"}
	cerr := Classify(cause, "op")

	var serr *StatusError
	require.ErrorAs(t, cerr, &serr)
	assert.Equal(t, 500, serr.Code)
}

func TestError_Message(t *testing.T) {
	cerr := NewError(KindConfiguration, "reconcile.group", "no mapping for instrument 0014")

	msg := cerr.Error()

	assert.Contains(t, msg, "CONFIGURATION_ERROR")
	assert.Contains(t, msg, "reconcile.group")
	assert.Contains(t, msg, "no mapping for instrument 0014")
}
