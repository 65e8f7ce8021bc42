// Package codec implements the canonical byte encoding used for every hash
// and signature in the node. Two nodes holding equal logical state MUST
// produce identical bytes — every other component depends on that, so this
// package has no dependency on anything but common and the standard
// library, and every other package that needs a stable byte form builds a
// Value out of this package's constructors rather than rolling its own.
//
// The encoding is a restricted, canonical cousin of JSON: object keys are
// sorted in ascending byte order (which, for valid UTF-8, is ascending
// Unicode code-point order), there is no insignificant whitespace, and
// fixed-point amounts are written as quoted 6-decimal strings rather than
// JSON numbers so that no float ever touches a hash. This mirrors how the
// Libre-Network prototype hashed state (sorted-key json.dumps over the
// snapshot) while closing the float-precision gap that approach left open.
package codec

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/libreledger/consensus-node/internal/common"
)

// Value is any node in the canonical tree: Null, Bool, Int, Str, Dec,
// Array or Obj.
type Value interface {
	encode(buf *bytes.Buffer)
}

type nullValue struct{}

func (nullValue) encode(buf *bytes.Buffer) { buf.WriteString("null") }

// Null is the canonical absence-of-value.
var Null Value = nullValue{}

type boolValue bool

func (b boolValue) encode(buf *bytes.Buffer) {
	if b {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}
}

// Bool wraps a boolean.
func Bool(b bool) Value { return boolValue(b) }

type intValue int64

func (i intValue) encode(buf *bytes.Buffer) {
	buf.WriteString(strconv.FormatInt(int64(i), 10))
}

// Int wraps a signed integer, encoded without superfluous zero padding.
func Int(i int64) Value { return intValue(i) }

type strValue string

func (s strValue) encode(buf *bytes.Buffer) {
	// encoding/json.Marshal on a string produces the same escaping rules
	// every implementation of this codec (present or future, in any
	// language) would reach for, so reuse it instead of hand-rolling one.
	b, _ := json.Marshal(string(s))
	buf.Write(b)
}

// Str wraps a string.
func Str(s string) Value { return strValue(s) }

type decValue struct{ a common.Amount }

func (d decValue) encode(buf *bytes.Buffer) {
	buf.WriteByte('"')
	buf.WriteString(d.a.String())
	buf.WriteByte('"')
}

// Dec wraps a fixed-point amount in its documented 6-decimal string form.
func Dec(a common.Amount) Value { return decValue{a: a} }

type arrayValue []Value

func (a arrayValue) encode(buf *bytes.Buffer) {
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		v.encode(buf)
	}
	buf.WriteByte(']')
}

// Array wraps an ordered sequence of values. Order is preserved as given.
func Array(vs ...Value) Value { return arrayValue(vs) }

type objValue map[string]Value

func (o objValue) encode(buf *bytes.Buffer) {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		o[k].encode(buf)
	}
	buf.WriteByte('}')
}

// Obj wraps a map-from-string. Keys are sorted in ascending byte order at
// encode time, regardless of iteration order.
func Obj(m map[string]Value) Value { return objValue(m) }

// Encode renders v as its canonical byte string.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	v.encode(&buf)
	return buf.Bytes()
}
