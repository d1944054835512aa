package storage

// Kind identifies the data kind held by a Slot
type Kind byte

const (
	KindNone Kind = iota
	KindString
	KindList
	KindSet
	KindHash
	KindZSet
	KindStream
	// KindExtension covers kinds registered from outside the core
	KindExtension
)

// String returns the name reported by the TYPE command
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindZSet:
		return "zset"
	case KindStream:
		return "stream"
	case KindExtension:
		return "extension"
	}
	return "none"
}

// Value is the payload of a Slot. Every data kind supplies one implementation
type Value interface {
	Kind() Kind
	// Empty reports whether the owning Slot must be removed after a mutation
	Empty() bool
	// Clone returns a deep copy, used by COPY and the set-algebra STORE variants
	Clone() Value
}

// Named is implemented by extension values to report their own TYPE name
type Named interface {
	TypeName() string
}

// TypeName returns the TYPE reply for v
func TypeName(v Value) string {
	if n, ok := v.(Named); ok {
		return n.TypeName()
	}
	return v.Kind().String()
}

// Slot holds a key's value with its expiry and version metadata
type Slot struct {
	Value    Value
	ExpireAt int64  // unix milliseconds, 0 means no expiry
	Version  uint64 // bumped on every mutation, never on reads
}
