// Package errors defines AppError, the coded error every molstruct layer
// returns.  HTTP, gRPC and CLI surfaces render the code; logs and metrics
// label by it.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// AppError carries a code, a client-facing message and optional detail.
//
//	errors.New(errors.CodeMoleculeNotFound, "molecule 42 not found")
//	errors.Wrap(err, errors.CodeDBQueryError, "failed to load molecule")
//	errors.MalformedInput("xyz", "line 3: expected 4 fields, got 2")
type AppError struct {
	Code    ErrorCode
	Message string
	// Detail tells the caller how to fix the input: the failing line, the
	// offending symbol or the supported set.
	Detail string
	Cause  error

	pcs []uintptr
}

// Error renders "[code] message" with ": detail" appended when set.
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(string(e.Code))
	sb.WriteString("] ")
	sb.WriteString(e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetail returns a copy carrying detail.  Shared sentinel values stay
// untouched.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Detail = detail
	return &c
}

// WithCause returns a copy wrapping err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Cause = err
	return &c
}

// StackTrace formats the frames recorded when e was created, one per line,
// runtime frames omitted.
func (e *AppError) StackTrace() string {
	if len(e.pcs) == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(e.pcs)
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&sb, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		}
		if !more {
			return sb.String()
		}
	}
}

// build records the stack above the exported constructor that called it.
func build(code ErrorCode, message, detail string, cause error) *AppError {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return &AppError{Code: code, Message: message, Detail: detail, Cause: cause, pcs: pcs[:n]}
}

func New(code ErrorCode, message string) *AppError { return build(code, message, "", nil) }

// Wrap returns nil for a nil err.  With CodeUnknown the code of the first
// AppError in err's chain is kept.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		code = GetCode(err)
	}
	return build(code, message, "", err)
}

func NotFound(message string) *AppError     { return build(CodeNotFound, message, "", nil) }
func InvalidParam(message string) *AppError { return build(CodeInvalidParam, message, "", nil) }
func Internal(message string) *AppError     { return build(CodeInternal, message, "", nil) }
func Conflict(message string) *AppError     { return build(CodeConflict, message, "", nil) }
func Unauthorized(message string) *AppError { return build(ErrCodeUnauthorized, message, "", nil) }
func Forbidden(message string) *AppError    { return build(ErrCodeForbidden, message, "", nil) }

// ─── parse failures ──────────────────────────────────────────────────────────

// UndecodableInput lists the encodings tried, in order.
func UndecodableInput(tried []string) *AppError {
	return build(ErrCodeMoleculeUndecodableInput, "input could not be decoded as text",
		"tried "+strings.Join(tried, ", "), nil)
}

// UnsupportedFormat names the requested format and the sorted supported set.
func UnsupportedFormat(requested string, supported []string) *AppError {
	set := append([]string(nil), supported...)
	sort.Strings(set)
	return build(ErrCodeMoleculeUnsupportedFormat, fmt.Sprintf("unsupported format %q", requested),
		"supported formats: "+strings.Join(set, ", "), nil)
}

// MalformedInput reports a structural rule of format that the input breaks.
func MalformedInput(format, reason string) *AppError {
	return build(ErrCodeMoleculeMalformedInput, "malformed "+format+" input", reason, nil)
}

func UnsupportedElement(symbol string) *AppError {
	return build(ErrCodeMoleculeUnsupportedElem, fmt.Sprintf("unsupported element %q", symbol), "", nil)
}

func EmptyMolecule() *AppError {
	return build(ErrCodeMoleculeEmpty, "no atoms parsed", "", nil)
}

// ─── inspection ──────────────────────────────────────────────────────────────

// Is and As forward to the standard library so callers need one import.
func Is(err, target error) bool             { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }

// ErrInvalidConfig is returned by constructors given unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// anyCode walks err's chain, including AppErrors wrapped below other
// AppErrors, and reports whether match accepts one of their codes.
func anyCode(err error, match func(ErrorCode) bool) bool {
	for err != nil {
		var ae *AppError
		if !errors.As(err, &ae) {
			return false
		}
		if match(ae.Code) {
			return true
		}
		err = ae.Cause
	}
	return false
}

func IsCode(err error, code ErrorCode) bool {
	return anyCode(err, func(c ErrorCode) bool { return c == code })
}

// IsNotFound matches both the generic and the molecule not-found codes.
func IsNotFound(err error) bool {
	return anyCode(err, func(c ErrorCode) bool { return c == CodeNotFound || c == CodeMoleculeNotFound })
}

// IsParseError reports failures caused by the input content: undecodable,
// malformed, unsupported element or empty.  An unsupported format is not one.
func IsParseError(err error) bool {
	return anyCode(err, func(c ErrorCode) bool {
		switch c {
		case ErrCodeMoleculeUndecodableInput, ErrCodeMoleculeMalformedInput,
			ErrCodeMoleculeUnsupportedElem, ErrCodeMoleculeEmpty:
			return true
		}
		return false
	})
}

// GetCode is the code of the outermost AppError, CodeOK for nil and
// CodeUnknown when the chain has none.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

//Personal.AI order the ending
