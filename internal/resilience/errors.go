package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// StatusOverloaded is the status Anthropic returns when the API is saturated.
const StatusOverloaded = 529

// Temporary marks a failure a later attempt may not hit. Status is the HTTP
// status behind it, or 0.
type Temporary struct {
	Err    error
	Status int
}

func (e *Temporary) Error() string { return e.Err.Error() }
func (e *Temporary) Unwrap() error { return e.Err }

// HTTPStatus implements StatusCoder.
func (e *Temporary) HTTPStatus() int { return e.Status }

// MarkTemporary wraps err so every Classifier retries it.
func MarkTemporary(err error, status int) *Temporary {
	return &Temporary{Err: err, Status: status}
}

// StatusCoder is implemented by errors that carry the HTTP status of a failed
// request, such as scrape.StatusError.
type StatusCoder interface {
	HTTPStatus() int
}

// StatusFunc reads the HTTP status out of an SDK error type that does not
// implement StatusCoder. It returns 0 when err carries no status.
type StatusFunc func(err error) int

// Classifier decides which failures a Policy retries. A status found on the
// error decides on its own; errors without one are retried only for
// transport-level failures.
type Classifier struct {
	Statuses []StatusFunc
}

// Status returns the first HTTP status found in err's chain, or 0.
func (c Classifier) Status(err error) int {
	var tmp *Temporary
	if errors.As(err, &tmp) && tmp.Status != 0 {
		return tmp.Status
	}
	var sc StatusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() != 0 {
		return sc.HTTPStatus()
	}
	for _, fn := range c.Statuses {
		if status := fn(err); status != 0 {
			return status
		}
	}
	return 0
}

// Retry reports whether err is worth another attempt. Cancellation never is.
func (c Classifier) Retry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if status := c.Status(err); status != 0 {
		return RetryableStatus(status)
	}
	var tmp *Temporary
	if errors.As(err, &tmp) {
		return true
	}
	return transportFailure(err)
}

// RetryableStatus reports whether a request that failed with status may
// succeed on a later attempt.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout,
		StatusOverloaded:
		return true
	}
	return false
}

// Messages seen from dropped connections that do not unwrap to a syscall error.
var droppedConnMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

func transportFailure(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range droppedConnMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
