package rfunctions

import (
	"encoding/json"
	"time"

	"github.com/marcohefti/rfunctions/internal/codec"
)

// Outcome is the result of one call. When HasValue is set, Value holds the
// decoded return value (numbers as float64) and Raw its JSON; otherwise the
// function produced nothing encodable and Stdout is the answer.
type Outcome struct {
	CallID   string          `json:"callId"`
	HasValue bool            `json:"hasValue"`
	Value    any             `json:"value,omitempty"`
	Raw      json.RawMessage `json:"-"`

	Stdout          []byte `json:"-"`
	Stderr          []byte `json:"-"`
	StdoutTruncated bool   `json:"stdoutTruncated,omitempty"`
	StderrTruncated bool   `json:"stderrTruncated,omitempty"`

	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"-"`
}

// Result returns Value when the call produced one and the captured stdout as
// a string otherwise.
func (o Outcome) Result() any {
	if o.HasValue {
		return o.Value
	}
	return string(o.Stdout)
}

// Decode unmarshals the returned value into dst.
func (o Outcome) Decode(dst any) error {
	if !o.HasValue {
		return newError(ErrorDecode, "call produced no structured result")
	}
	if err := codec.DecodeInto(o.Raw, dst); err != nil {
		return wrapError(ErrorDecode, "decode result", err)
	}
	return nil
}
