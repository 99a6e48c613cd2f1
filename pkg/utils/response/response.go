package response

import (
	"context"
	"encoding/json"

	"codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// Response represents the standard API envelope returned by judge and problem endpoints
type Response struct {
	Code    errors.ErrorCode `json:"code"`               // Error code
	Message string           `json:"message"`            // Error message
	Data    json.RawMessage  `json:"data,omitempty"`     // Response data (omit if nil)
	Details interface{}      `json:"details,omitempty"`  // Additional details (omit if nil)
	TraceID string           `json:"trace_id,omitempty"` // Request trace ID
}

// OK reports whether the envelope carries a success code
func (r Response) OK() bool {
	return r.Code == errors.Success
}

// Err converts a failed envelope into a coded error
func (r Response) Err(fallback errors.ErrorCode) *errors.Error {
	if r.OK() {
		return nil
	}
	code := r.Code
	if code == 0 {
		code = fallback
	}
	msg := r.Message
	if msg == "" {
		msg = code.Message()
	}
	return errors.New(code).WithMessage(msg).WithDetail("trace_id", r.TraceID)
}

// Result is the tagged outcome handed to the UI layer: {ok: true, value} or {ok: false, kind, message}
type Result[T any] struct {
	OK      bool             `json:"ok"`
	Value   T                `json:"value,omitempty"`
	Kind    errors.Kind      `json:"kind,omitempty"`
	Code    errors.ErrorCode `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Success wraps a value
func Success[T any](value T) Result[T] {
	return Result[T]{OK: true, Value: value}
}

// Failure converts any error into a failed result and logs it once
func Failure[T any](ctx context.Context, err error) Result[T] {
	customErr := errors.GetError(err)
	if customErr == nil {
		customErr = errors.New(errors.InternalServerError)
	}

	kind := errors.GetKind(customErr)
	logger.Warn(ctx, "operation failed",
		zap.Int("code", int(customErr.Code)),
		zap.String("kind", string(kind)),
		zap.String("message", customErr.Error()),
		zap.Any("details", customErr.Details),
	)

	return Result[T]{
		OK:      false,
		Kind:    kind,
		Code:    customErr.Code,
		Message: customErr.Error(),
	}
}

// From builds a Result from a Go (value, error) pair
func From[T any](ctx context.Context, value T, err error) Result[T] {
	if err != nil {
		return Failure[T](ctx, err)
	}
	return Success(value)
}
