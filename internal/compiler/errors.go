package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Compile error codes (E200-E299)
const (
	ErrNilQuery          = "E200" // nil query or missing WHERE pattern
	ErrUnknownElement    = "E201" // AST element outside the known set
	ErrEmptyAlternative  = "E202" // empty or unpopulated alternative while assembling joins
	ErrMissingDependency = "E203" // node input never registered in the cache
	ErrCartesianJoin     = "E204" // cartesian join rejected in strict mode
	ErrUnboundVariable   = "E205" // projected or grouped variable never bound
	ErrConfig            = "E206" // invalid CUE configuration
	ErrQuerySyntax       = "E207" // query text does not parse
)

// CompileError is a compile-time failure. Nothing is emitted when one is
// returned. Pos is set when the failure traces back to a CUE source.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	prefix := ""
	if e.Pos.IsValid() {
		prefix = fmt.Sprintf("%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Field != "" {
		return fmt.Sprintf("%s[%s] %s: %s", prefix, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s[%s] %s", prefix, e.Code, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func newError(code, field, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsCompileError reports whether err is or wraps a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// ErrorCode returns the code of the *CompileError wrapped by err, or "".
func ErrorCode(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
