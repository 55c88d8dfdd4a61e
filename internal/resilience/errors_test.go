package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

// sdkErr stands in for a provider SDK error that exposes its status as a field.
type sdkErr struct{ code int }

func (e *sdkErr) Error() string { return "sdk error" }

func sdkStatus(err error) int {
	var e *sdkErr
	if errors.As(err, &e) {
		return e.code
	}
	return 0
}

func TestClassifier_Retry(t *testing.T) {
	c := Classifier{Statuses: []StatusFunc{sdkStatus}}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked", MarkTemporary(errors.New("rate limited"), 429), true},
		{"marked without status", MarkTemporary(errors.New("stream cut"), 0), true},
		{"wrapped marked", fmt.Errorf("call: %w", MarkTemporary(errors.New("x"), 503)), true},
		{"status coder 502", fmt.Errorf("fetch: %w", statusErr(502)), true},
		{"status coder 404", fmt.Errorf("fetch: %w", statusErr(404)), false},
		{"sdk overloaded", fmt.Errorf("messages: %w", &sdkErr{code: 529}), true},
		{"sdk bad request", &sdkErr{code: 400}, false},
		{"plain", errors.New("invalid input"), false},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"dropped connection message", errors.New("read tcp: i/o timeout"), true},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Retry(tt.err))
		})
	}
}

func TestClassifier_Status(t *testing.T) {
	c := Classifier{Statuses: []StatusFunc{sdkStatus}}
	assert.Equal(t, 503, c.Status(MarkTemporary(errors.New("x"), 503)))
	assert.Equal(t, 404, c.Status(fmt.Errorf("wrap: %w", statusErr(404))))
	assert.Equal(t, 529, c.Status(&sdkErr{code: 529}))
	assert.Equal(t, 0, c.Status(errors.New("no status")))

	// Without the SDK hook the error is opaque.
	assert.Equal(t, 0, Classifier{}.Status(&sdkErr{code: 529}))
	assert.False(t, Classifier{}.Retry(&sdkErr{code: 529}))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, StatusOverloaded} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}

func TestTemporary_Unwrap(t *testing.T) {
	base := errors.New("base")
	tmp := MarkTemporary(base, 500)
	assert.ErrorIs(t, tmp, base)
	assert.Equal(t, "base", tmp.Error())
	assert.Equal(t, 500, tmp.HTTPStatus())
}
