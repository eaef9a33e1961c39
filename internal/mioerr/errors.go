// Package mioerr defines the structured error taxonomy shared by the
// indexing and context-compilation pipeline. Every caller-visible error
// carries a code identifying the failing stage.
package mioerr

import (
	"errors"
	"fmt"
)

// Code classifies a pipeline error.
type Code string

const (
	// CodeIO marks an unreadable path or filesystem failure. Fatal to the call.
	CodeIO Code = "IO_ERROR"
	// CodeParse marks a single-file extraction failure. Recorded, non-fatal
	// to the index pass.
	CodeParse Code = "PARSE_ERROR"
	// CodeIntegrity marks an edge referencing a missing endpoint. Fatal to
	// that file's transaction only.
	CodeIntegrity Code = "INTEGRITY_ERROR"
	// CodePlan marks a cyclic or malformed worker plan. Fatal to the request,
	// nothing executes.
	CodePlan Code = "PLAN_ERROR"
	// CodeWorker marks a worker that exhausted its retries. Degrades one
	// fragment, non-fatal to the request.
	CodeWorker Code = "WORKER_ERROR"
	// CodeUpstream marks an embedding or generative provider failure after
	// bounded retries.
	CodeUpstream Code = "UPSTREAM_ERROR"
)

// Error is a structured pipeline error with a code, the stage that failed,
// and an optional wrapped cause.
type Error struct {
	Code    Code
	Stage   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Code, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Code, e.Stage, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a structured error for the given stage.
func New(code Code, stage, message string) *Error {
	return &Error{Code: code, Stage: stage, Message: message}
}

// Wrap creates a structured error wrapping an underlying cause.
func Wrap(code Code, stage, message string, err error) *Error {
	return &Error{Code: code, Stage: stage, Message: message, Err: err}
}

// IO creates an IOError for the given stage.
func IO(stage, message string, err error) *Error {
	return Wrap(CodeIO, stage, message, err)
}

// Parse creates a ParseError for the given stage.
func Parse(stage, message string, err error) *Error {
	return Wrap(CodeParse, stage, message, err)
}

// Integrity creates an IntegrityError for the given stage.
func Integrity(stage, message string) *Error {
	return New(CodeIntegrity, stage, message)
}

// Plan creates a PlanError for the given stage.
func Plan(stage, message string) *Error {
	return New(CodePlan, stage, message)
}

// Worker creates a WorkerError for the given stage.
func Worker(stage, message string, err error) *Error {
	return Wrap(CodeWorker, stage, message, err)
}

// Upstream creates an UpstreamError for the given stage.
func Upstream(stage, message string, err error) *Error {
	return Wrap(CodeUpstream, stage, message, err)
}

// Is reports whether err (or anything it wraps) is a pipeline error with the
// given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// StageOf returns the failing stage recorded on err, or "" if err carries none.
func StageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
