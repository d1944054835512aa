package datatype

import (
	"math/bits"

	"github.com/pkg/errors"
)

// MaxBitOffset is the largest addressable bit of a string
const MaxBitOffset = MaxStringLen*8 - 1

var ErrBitOp = errors.New("unknown bit operation")

// GetBit returns the bit at offset, 0 past the end of the string
func (s *String) GetBit(offset int64) int {
	idx := offset >> 3
	if idx >= int64(len(s.b)) {
		return 0
	}
	return int(s.b[idx]>>(7-uint(offset&7))) & 1
}

// SetBit sets or clears the bit at offset, growing the string as needed.
// It returns the previous bit
func (s *String) SetBit(offset int64, on bool) (int, error) {
	if offset < 0 || offset > MaxBitOffset {
		return 0, ErrBitOffset
	}
	s.grow(int(offset>>3) + 1)
	old := s.GetBit(offset)
	mask := byte(1 << (7 - uint(offset&7)))
	if on {
		s.b[offset>>3] |= mask
	} else {
		s.b[offset>>3] &^= mask
	}
	return old, nil
}

// bitRange normalizes a start/end pair the way GETRANGE does, over a string of
// size units. ok is false when the range is empty
func bitRange(start, end, size int64) (int64, int64, bool) {
	if start < 0 {
		start += size
	}
	if end < 0 {
		end += size
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}
	if end >= size {
		end = size - 1
	}
	if size == 0 || start > end {
		return 0, 0, false
	}
	return start, end, true
}

// BitCount counts set bits between start and end inclusive. The bounds are
// byte indexes, or bit indexes when bitMode is set
func (s *String) BitCount(start, end int64, bitMode bool) int64 {
	size := int64(len(s.b))
	if bitMode {
		size *= 8
	}
	start, end, ok := bitRange(start, end, size)
	if !ok {
		return 0
	}
	if !bitMode {
		return popcount(s.b[start : end+1])
	}

	var n int64
	firstByte, lastByte := start>>3, end>>3
	for i := firstByte; i <= lastByte; i++ {
		b := s.b[i]
		if i == firstByte {
			b &= 0xff >> uint(start&7)
		}
		if i == lastByte {
			b &= 0xff << uint(7-end&7)
		}
		n += int64(bits.OnesCount8(b))
	}
	return n
}

// BitPos finds the first bit equal to bit inside the range. When looking for a
// clear bit without an explicit end, the string is treated as zero padded
func (s *String) BitPos(bit int, start, end int64, endGiven, bitMode bool) int64 {
	size := int64(len(s.b))
	if bitMode {
		size *= 8
	}
	start, end, ok := bitRange(start, end, size)
	if !ok {
		return -1
	}
	if !bitMode {
		start, end = start*8, end*8+7
	}

	for pos := start; pos <= end; pos++ {
		// skip whole bytes that cannot contain a match
		if pos&7 == 0 && pos+7 <= end {
			b := s.b[pos>>3]
			if (bit == 1 && b == 0) || (bit == 0 && b == 0xff) {
				pos += 7
				continue
			}
		}
		if s.GetBit(pos) == bit {
			return pos
		}
	}
	if bit == 0 && !endGiven {
		return end + 1
	}
	return -1
}

func popcount(b []byte) int64 {
	var n int64
	for len(b) >= 8 {
		n += int64(bits.OnesCount64(uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
			uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56))
		b = b[8:]
	}
	for _, c := range b {
		n += int64(bits.OnesCount8(c))
	}
	return n
}

// BitOp combines srcs bytewise with op (AND, OR, XOR or NOT). Shorter inputs are
// zero padded to the longest one
func BitOp(op string, srcs [][]byte) ([]byte, error) {
	maxLen := 0
	for _, src := range srcs {
		if len(src) > maxLen {
			maxLen = len(src)
		}
	}
	out := make([]byte, maxLen)

	at := func(src []byte, i int) byte {
		if i < len(src) {
			return src[i]
		}
		return 0
	}

	switch op {
	case "NOT":
		for i := range out {
			out[i] = ^at(srcs[0], i)
		}
	case "AND", "OR", "XOR":
		for i := range out {
			acc := at(srcs[0], i)
			for _, src := range srcs[1:] {
				switch op {
				case "AND":
					acc &= at(src, i)
				case "OR":
					acc |= at(src, i)
				case "XOR":
					acc ^= at(src, i)
				}
			}
			out[i] = acc
		}
	default:
		return nil, ErrBitOp
	}
	return out, nil
}
