package rfunctions

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/marcohefti/rfunctions/internal/codes"
)

type ErrorKind string

const (
	ErrorUsage     ErrorKind = "usage"
	ErrorEncode    ErrorKind = "encode"
	ErrorDecode    ErrorKind = "decode"
	ErrorWorkspace ErrorKind = "workspace"
	ErrorLaunch    ErrorKind = "launch"
	ErrorProcess   ErrorKind = "process"
	ErrorTimeout   ErrorKind = "timeout"
	ErrorCanceled  ErrorKind = "canceled"
)

// Error is the only error type returned by calls. Process, timeout and
// canceled errors carry the interpreter's exit status and both captured
// streams; a source file that fails to load or a missing function is reported
// as ErrorProcess because only R can tell them apart.
type Error struct {
	Code     string    `json:"code"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	CallID   string    `json:"callId,omitempty"`
	ExitCode int       `json:"exitCode"`

	Stdout []byte `json:"-"`
	Stderr []byte `json:"-"`

	Underlying error `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "rfunctions error"
	}
	if e.Code == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Underlying
}

func ErrorCodeForKind(kind ErrorKind) string {
	switch kind {
	case ErrorUsage:
		return codes.Usage
	case ErrorEncode:
		return codes.Encode
	case ErrorDecode:
		return codes.Decode
	case ErrorWorkspace:
		return codes.Workspace
	case ErrorLaunch:
		return codes.Launch
	case ErrorProcess:
		return codes.Process
	case ErrorTimeout:
		return codes.Timeout
	case ErrorCanceled:
		return codes.Canceled
	default:
		return codes.Process
	}
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Code: ErrorCodeForKind(kind), Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, err error) *Error {
	e := newError(kind, message)
	e.Underlying = err
	if err != nil {
		e.Message = message + ": " + err.Error()
	}
	return e
}

func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// firstLine picks the first non-blank line of captured stderr, which is where
// R puts "Error in f() : message".
func firstLine(b []byte) string {
	for _, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		const limit = 240
		if len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			return string(line[:cut]) + "..."
		}
		return string(line)
	}
	return ""
}
