package resp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MakeSimpleString construct SimpleString Value from string
func MakeSimpleString(s string) Value {
	return Value{
		Type:   TypeSimpleString,
		String: []byte(s),
	}
}

// MakeOK construct the +OK status reply
func MakeOK() Value {
	return MakeSimpleString("OK")
}

// MakeError construct Error Value from string
func MakeError(s string) Value {
	return Value{
		Type:   TypeError,
		String: []byte(s),
	}
}

// MakeErrorWrongNumberOfArguments construct Error Value that command had wrong number of arguments for command
func MakeErrorWrongNumberOfArguments(cmd string) Value {
	return MakeError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", cmd))
}

// MakeBulkString construct BulkString Value from string
func MakeBulkString(s string) Value {
	return Value{
		Type:   TypeBulkString,
		String: []byte(s),
	}
}

// MakeNilBulkString construct nil BulkSting Value
func MakeNilBulkString() Value {
	return Value{
		Type:   TypeBulkString,
		IsNull: true,
	}
}

// MakeNilArray construct nil Array Value (*-1 in RESP2)
func MakeNilArray() Value {
	return Value{
		Type:   TypeArray,
		IsNull: true,
	}
}

// MakeInteger construct Integer Value from int64
func MakeInteger(n int64) Value {
	return Value{
		Type:    TypeInteger,
		Integer: n,
	}
}

// MakeBool construct Boolean Value. RESP2 clients receive 1 or 0
func MakeBool(b bool) Value {
	v := Value{Type: TypeBoolean}
	if b {
		v.Integer = 1
	}
	return v
}

// MakeDouble construct Double Value. RESP2 clients receive a bulk string
func MakeDouble(f float64) Value {
	return Value{
		Type:   TypeDouble,
		Double: f,
	}
}

// MakeArray creates a standard RESP array containing the provided elements
func MakeArray(values []Value) Value {
	if values == nil {
		values = []Value{}
	}
	return Value{
		Type:  TypeArray,
		Array: values,
	}
}

// MakeBulkArray creates an array of bulk strings
func MakeBulkArray(items []string) Value {
	vals := make([]Value, len(items))
	for i, s := range items {
		vals[i] = MakeBulkString(s)
	}
	return MakeArray(vals)
}

// MakeSet creates a RESP3 set, downgraded to an array for RESP2
func MakeSet(items []string) Value {
	v := MakeBulkArray(items)
	v.Type = TypeSet
	return v
}

// MakeMap creates a RESP3 map from interleaved key/value elements
func MakeMap(kv []Value) Value {
	if kv == nil {
		kv = []Value{}
	}
	return Value{
		Type:  TypeMap,
		Array: kv,
	}
}

// MakePush creates an out-of-band push message (pub/sub deliveries)
func MakePush(values []Value) Value {
	return Value{
		Type:  TypePush,
		Array: values,
	}
}

// MakeSequence bundles several replies of one command
func MakeSequence(values []Value) Value {
	return Value{
		Type:  TypeSequence,
		Array: values,
	}
}

// FormatDouble renders a float the way the server prints scores and doubles:
// integral values without a fraction, everything else as the shortest round-trip
// form. Like %.17g, the exponent form is kept for decimal exponents below -4 or
// from 17 up
func FormatDouble(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.LastIndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 17 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
