package resp

const (
	TypeSimpleString = '+'
	TypeError        = '-'
	TypeInteger      = ':'
	TypeBulkString   = '$'
	TypeArray        = '*'

	// RESP3 additions
	TypeNull    = '_'
	TypeDouble  = ','
	TypeBoolean = '#'
	TypeMap     = '%'
	TypeSet     = '~'
	TypePush    = '>'

	// TypeSequence is not a wire type: it carries several replies produced by one
	// command (SUBSCRIBE a b c) that the encoder writes back to back
	TypeSequence = 0x01
)

// Value is a single RESP reply or request element.
// Map values keep keys and values interleaved in Array
type Value struct {
	String  []byte // SimpleString, Error, BulkString
	Array   []Value
	Integer int64
	Double  float64
	Type    byte
	IsNull  bool // For nil BulkString and nil Array
}

// IsError reports whether v is an error reply
func (v Value) IsError() bool {
	return v.Type == TypeError
}

// Text returns the textual payload of simple and bulk strings and errors
func (v Value) Text() string {
	return string(v.String)
}
