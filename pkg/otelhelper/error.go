package otelhelper

import (
	"context"
	"errors"

	"github.com/dukex/botflow/pkg/gateway"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorKindKey classifies a recorded failure so traces can be filtered by cause.
const ErrorKindKey = "botflow.error.kind"

const (
	ErrorKindUnreachable = "recipient_unreachable"
	ErrorKindTimeout     = "timeout"
	ErrorKindCanceled    = "canceled"
	ErrorKindSession     = "session_closed"
	ErrorKindInternal    = "internal"
)

// ErrorKind maps err to one of the ErrorKind values.
func ErrorKind(err error) string {
	switch {
	case gateway.IsUnreachable(err):
		return ErrorKindUnreachable
	case errors.Is(err, gateway.ErrSessionClosed):
		return ErrorKindSession
	case errors.Is(err, gateway.ErrIdentityTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return ErrorKindCanceled
	default:
		return ErrorKindInternal
	}
}

// SetError marks the span failed and tags it with the error kind. A nil err
// leaves the span untouched.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	kind := attribute.String(ErrorKindKey, ErrorKind(err))

	span.SetAttributes(kind)
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err, trace.WithAttributes(append(attrs, kind)...))
}
