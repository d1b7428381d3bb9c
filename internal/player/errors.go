package player

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/retry"
)

// ErrorClass decides how the session reacts to a failed item.
type ErrorClass int

const (
	ClassUnknown   ErrorClass = iota // notice only, playback continues
	ClassTransient                   // retry the same index with backoff
	ClassPermanent                   // skip to the next index
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, domain.ErrDecodeUnsupported):
		return ClassPermanent
	case errors.Is(err, domain.ErrNetworkTransient),
		errors.Is(err, domain.ErrConnectionLost),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassUnknown
}

// retryable adapts Classify for retry.Do: only transient failures are retried.
func retryable(err error) retry.Action {
	if Classify(err) == ClassTransient {
		return retry.Retry
	}
	return retry.Stop
}
