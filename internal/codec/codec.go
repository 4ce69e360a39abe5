package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"

	"github.com/marcohefti/rfunctions/internal/store"
)

// maxDepth bounds nesting so self-referencing slices and maps fail fast
// instead of recursing until the stack gives out.
const maxDepth = 256

type Error struct {
	Op   string // encode|decode|args
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "codec error"
	}
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError unwraps err to a *Error when possible.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

var (
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
	numberType     = reflect.TypeOf(json.Number(""))
	marshalerType  = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// Encode renders v as a single JSON document. v must stay inside the value
// model: null, booleans, finite numbers, strings, sequences and string-keyed
// mappings of those.
func Encode(v any) ([]byte, error) {
	if err := validate(reflect.ValueOf(v), 0, "$"); err != nil {
		return nil, err
	}
	b, err := store.CanonicalJSON(v)
	if err != nil {
		return nil, &Error{Op: "encode", Msg: "marshal value", Err: err}
	}
	return b, nil
}

// Decode parses exactly one JSON document. Numbers decode as float64.
func Decode(b []byte) (any, error) {
	var v any
	if err := DecodeInto(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func DecodeInto(b []byte, dst any) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return &Error{Op: "decode", Msg: "empty document"}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(dst); err != nil {
		return &Error{Op: "decode", Msg: "malformed json", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &Error{Op: "decode", Msg: "trailing data after document"}
	}
	return nil
}

func validate(rv reflect.Value, depth int, path string) error {
	if depth > maxDepth {
		return &Error{Op: "encode", Path: path, Msg: "value nested too deeply (cyclic?)"}
	}
	if !rv.IsValid() {
		return nil
	}
	t := rv.Type()
	switch t {
	case rawMessageType:
		if rv.Len() > 0 && !json.Valid(rv.Bytes()) {
			return &Error{Op: "encode", Path: path, Msg: "raw message is not valid json"}
		}
		return nil
	case numberType:
		return nil
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		if t.Implements(marshalerType) {
			return nil
		}
		return validate(rv.Elem(), depth+1, path)
	}
	if t.Implements(marshalerType) {
		return nil
	}

	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &Error{Op: "encode", Path: path, Msg: fmt.Sprintf("non-finite number %v", f)}
		}
		return nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Error{Op: "encode", Path: path, Msg: "binary data is not supported"}
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := validate(rv.Index(i), depth+1, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return &Error{Op: "encode", Path: path, Msg: fmt.Sprintf("map keys must be strings, got %s", t.Key())}
		}
		iter := rv.MapRange()
		for iter.Next() {
			if err := validate(iter.Value(), depth+1, path+"."+iter.Key().String()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("json") == "-" {
				continue
			}
			if err := validate(rv.Field(i), depth+1, path+"."+f.Name); err != nil {
				return err
			}
		}
		return nil
	default:
		return &Error{Op: "encode", Path: path, Msg: fmt.Sprintf("unsupported type %s", t)}
	}
}
