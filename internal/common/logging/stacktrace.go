package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Stacktrace = "stacktrace"

// Unexported but considered part of the stable interface of pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStacktrace adds err and, if one was recorded anywhere in its chain, the stack trace of the innermost
// pkg/errors error to logger.
func WithStacktrace(logger *logrus.Entry, err error) *logrus.Entry {
	logger = logger.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		logger = logger.WithField(Stacktrace, stack)
	}
	return logger
}

// ExtractStack returns the deepest errors.StackTrace found by unwrapping err, which is the one closest to where
// the failure happened. It returns nil if there is none.
func ExtractStack(err error) errors.StackTrace {
	var stack errors.StackTrace
	for err != nil {
		if tracer, ok := err.(stackTracer); ok {
			stack = tracer.StackTrace()
		}
		err = errors.Unwrap(err)
	}
	return stack
}
