package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "codearena/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{SessionNotFound, "Session not found"},
		{InvalidParams, "Invalid parameters"},
		{JudgeUnavailable, "Judge service is unavailable"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_Kind(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want Kind
	}{
		{JudgeUnavailable, KindBackendUnavailable},
		{Timeout, KindBackendUnavailable},
		{MalformedJudgeResponse, KindMalformedResponse},
		{SessionBusy, KindInvalidState},
		{ModeNotSupported, KindInvalidState},
		{ProblemDataMissing, KindMissingProblemData},
		{ValidationFailed, KindInvalidInput},
		{CodePersistFailed, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	err := New(SessionNotFound)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	if err.Code != SessionNotFound {
		t.Errorf("Code = %v, want %v", err.Code, SessionNotFound)
	}

	if err.Error() != SessionNotFound.Message() {
		t.Errorf("Error() = %v, want %v", err.Error(), SessionNotFound.Message())
	}
}

func TestNewf(t *testing.T) {
	err := Newf(SessionNotFound, "session %s not found", "abc")

	want := "session abc not found"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, JudgeUnavailable)

	if wrappedErr.Code != JudgeUnavailable {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, JudgeUnavailable)
	}

	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}

	if Wrap(nil, JudgeUnavailable) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New(ValidationFailed).
		WithDetail("field", "language").
		WithDetail("reason", "required")

	if err.Details["field"] != "language" {
		t.Error("Field detail not set correctly")
	}

	if err.Details["reason"] != "required" {
		t.Error("Reason detail not set correctly")
	}
}

func TestError_WithMessage(t *testing.T) {
	customMsg := "custom error message"
	err := New(InternalServerError).WithMessage(customMsg)

	if err.Error() != customMsg {
		t.Errorf("Error() = %v, want %v", err.Error(), customMsg)
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "nil error",
			err:  nil,
			want: Success,
		},
		{
			name: "custom error",
			err:  New(SessionBusy),
			want: SessionBusy,
		},
		{
			name: "wrapped custom error",
			err:  fmt.Errorf("submit: %w", New(JudgeUnavailable)),
			want: JudgeUnavailable,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: InternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(SessionBusy)

	if !Is(err, SessionBusy) {
		t.Error("Is() should return true for matching code")
	}

	if Is(err, SessionClosed) {
		t.Error("Is() should return false for non-matching code")
	}

	if Is(nil, SessionBusy) {
		t.Error("Is() should return false for nil error")
	}
}

func TestCommonErrorConstructors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("language", "required")
		if err.Code != ValidationFailed {
			t.Error("ValidationError should use ValidationFailed code")
		}
		if err.Details["field"] != "language" {
			t.Error("Field detail not set")
		}
	})

	t.Run("RequiredError", func(t *testing.T) {
		err := RequiredError("language")
		if err.Code != RequiredFieldEmpty || GetKind(err) != KindInvalidInput {
			t.Errorf("RequiredError code = %v", err.Code)
		}
		if err.Error() != "language is required" {
			t.Errorf("RequiredError message = %q", err.Error())
		}
	})

	t.Run("ValueError", func(t *testing.T) {
		err := ValueError("timer_seconds", "must not be negative")
		if err.Code != InvalidValue || err.Details["field"] != "timer_seconds" {
			t.Errorf("ValueError = %+v", err)
		}
	})

	t.Run("BusyError", func(t *testing.T) {
		err := BusyError("s1", "Submitting")
		if err.Code != SessionBusy || GetKind(err) != KindInvalidState {
			t.Errorf("BusyError code = %v", err.Code)
		}
	})

	t.Run("StateError", func(t *testing.T) {
		err := StateError("s1", "run", "Completed")
		if err.Error() != "run not allowed while Completed" {
			t.Errorf("StateError message = %q", err.Error())
		}
	})
}
