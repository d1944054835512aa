// Package datatype holds the value kinds stored in the keyspace. Every kind
// implements storage.Value and exposes the operations its commands need; none of
// them lock, the engine serializes access.
package datatype

import (
	"github.com/eternalApril/moonmock/internal/storage"
)

// String is a binary-safe byte string
type String struct {
	b []byte
}

// NewString wraps b. The slice is owned by the returned value
func NewString(b []byte) *String {
	return &String{b: b}
}

func (s *String) Kind() storage.Kind { return storage.KindString }

// Empty is always false: a string key holding "" still exists
func (s *String) Empty() bool { return false }

func (s *String) Clone() storage.Value {
	return &String{b: append([]byte(nil), s.b...)}
}

func (s *String) Bytes() []byte {
	return s.b
}

func (s *String) String() string {
	return string(s.b)
}

func (s *String) Len() int {
	return len(s.b)
}

// Append adds b to the end and returns the new length
func (s *String) Append(b []byte) (int, error) {
	if len(s.b)+len(b) > MaxStringLen {
		return 0, ErrStringTooLong
	}
	s.b = append(s.b, b...)
	return len(s.b), nil
}

// Int returns the value parsed as a 64-bit integer
func (s *String) Int() (int64, error) {
	return ParseInt(string(s.b))
}

// IncrBy adds delta to the integer held by the string
func (s *String) IncrBy(delta int64) (int64, error) {
	n, err := s.Int()
	if err != nil {
		return 0, err
	}
	n, err = addInt(n, delta)
	if err != nil {
		return 0, err
	}
	s.b = []byte(formatInt(n))
	return n, nil
}

// IncrByFloat adds delta to the number held by the string and returns its new text
func (s *String) IncrByFloat(delta float64) (string, error) {
	f, err := ParseFloat(string(s.b))
	if err != nil {
		return "", err
	}
	f, err = addFloat(f, delta)
	if err != nil {
		return "", err
	}
	out := FormatFloat(f)
	s.b = []byte(out)
	return out, nil
}

// GetRange returns the bytes between start and end inclusive. Negative offsets
// count from the end
func (s *String) GetRange(start, end int64) []byte {
	n := int64(len(s.b))
	if start < 0 && end < 0 && start > end {
		return nil
	}
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end {
		return nil
	}
	return s.b[start : end+1]
}

// SetRange overwrites bytes starting at offset, padding any gap with zero bytes.
// It returns the new length
func (s *String) SetRange(offset int64, b []byte) (int, error) {
	if offset < 0 {
		return 0, ErrOffsetRange
	}
	if offset+int64(len(b)) > MaxStringLen {
		return 0, ErrStringTooLong
	}
	if len(b) == 0 {
		return len(s.b), nil
	}
	s.grow(int(offset) + len(b))
	copy(s.b[offset:], b)
	return len(s.b), nil
}

// grow zero-extends the string to at least n bytes
func (s *String) grow(n int) {
	if n <= len(s.b) {
		return
	}
	if n <= cap(s.b) {
		old := len(s.b)
		s.b = s.b[:n]
		clear(s.b[old:])
		return
	}
	nb := make([]byte, n)
	copy(nb, s.b)
	s.b = nb
}
