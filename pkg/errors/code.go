package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem data errors
// 13000-13999: Judge errors
// 17000-17999: Workspace session errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Problem Data Errors (12000-12999) ==========

	ProblemNotFound    ErrorCode = 12000
	ProblemDataMissing ErrorCode = 12010

	// ========== Judge Errors (13000-13999) ==========

	LanguageNotSupported   ErrorCode = 13003
	JudgeSystemError       ErrorCode = 13101
	JudgeUnavailable       ErrorCode = 13110
	MalformedJudgeResponse ErrorCode = 13111

	// ========== Workspace Session Errors (17000-17999) ==========

	// Session lifecycle (17000-17099)
	SessionNotFound ErrorCode = 17000
	SessionClosed   ErrorCode = 17001

	// Submission state machine (17100-17199)
	SessionBusy         ErrorCode = 17100
	InvalidSessionState ErrorCode = 17101
	ModeNotSupported    ErrorCode = 17102

	// Persistence (17200-17299)
	CodePersistFailed ErrorCode = 17200
	CodeLoadFailed    ErrorCode = 17201

	// Notification channel (17300-17399)
	ChannelSubscribeFailed ErrorCode = 17300
	ChannelPublishFailed   ErrorCode = 17301
)

// Kind groups error codes into the classes the UI layer reacts to.
type Kind string

const (
	KindBackendUnavailable Kind = "BackendUnavailable"
	KindMalformedResponse  Kind = "MalformedResponse"
	KindInvalidState       Kind = "InvalidState"
	KindMissingProblemData Kind = "MissingProblemData"
	KindInvalidInput       Kind = "InvalidInput"
	KindInternal           Kind = "Internal"
)

// errorMessages maps error codes to their default messages
var errorMessages = map[ErrorCode]string{
	// System
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Cache
	CacheError:     "Cache operation failed",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Problem
	ProblemNotFound:    "Problem not found",
	ProblemDataMissing: "Problem data failed to load",

	// Judge
	LanguageNotSupported:   "Programming language not supported",
	JudgeSystemError:       "Judge system error",
	JudgeUnavailable:       "Judge service is unavailable",
	MalformedJudgeResponse: "Judge response is malformed",

	// Session
	SessionNotFound:     "Session not found",
	SessionClosed:       "Session is closed",
	SessionBusy:         "A run or submission is already in progress",
	InvalidSessionState: "Operation not allowed in the current session state",
	ModeNotSupported:    "Operation not supported in this mode",

	// Persistence
	CodePersistFailed: "Failed to save code",
	CodeLoadFailed:    "Failed to load saved code",

	// Notification
	ChannelSubscribeFailed: "Failed to subscribe to notification channel",
	ChannelPublishFailed:   "Failed to publish notification",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Kind returns the error class for the code
func (c ErrorCode) Kind() Kind {
	switch c {
	case JudgeUnavailable, JudgeSystemError, ServiceUnavailable, Timeout:
		return KindBackendUnavailable
	case MalformedJudgeResponse:
		return KindMalformedResponse
	case SessionBusy, InvalidSessionState, ModeNotSupported, SessionClosed, SessionNotFound:
		return KindInvalidState
	case ProblemDataMissing, ProblemNotFound:
		return KindMissingProblemData
	case InvalidParams, ValidationFailed, InvalidFormat, InvalidValue, RequiredFieldEmpty, LanguageNotSupported:
		return KindInvalidInput
	default:
		return KindInternal
	}
}
