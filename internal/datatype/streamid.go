package datatype

import (
	"math"
	"strconv"
	"strings"
)

// StreamID identifies a stream entry: a millisecond timestamp and a sequence
type StreamID struct {
	Ms  uint64
	Seq uint64
}

var (
	MinStreamID = StreamID{}
	MaxStreamID = StreamID{Ms: math.MaxUint64, Seq: math.MaxUint64}
)

func (id StreamID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

func (id StreamID) Less(other StreamID) bool {
	return id.Ms < other.Ms || (id.Ms == other.Ms && id.Seq < other.Seq)
}

func (id StreamID) IsZero() bool {
	return id.Ms == 0 && id.Seq == 0
}

// Next returns the smallest ID greater than id
func (id StreamID) Next() (StreamID, bool) {
	switch {
	case id.Seq < math.MaxUint64:
		return StreamID{Ms: id.Ms, Seq: id.Seq + 1}, true
	case id.Ms < math.MaxUint64:
		return StreamID{Ms: id.Ms + 1}, true
	}
	return id, false
}

// Prev returns the largest ID smaller than id
func (id StreamID) Prev() (StreamID, bool) {
	switch {
	case id.Seq > 0:
		return StreamID{Ms: id.Ms, Seq: id.Seq - 1}, true
	case id.Ms > 0:
		return StreamID{Ms: id.Ms - 1, Seq: math.MaxUint64}, true
	}
	return id, false
}

// ParseStreamID parses "<ms>-<seq>" or "<ms>". A missing sequence takes defSeq
func ParseStreamID(s string, defSeq uint64) (StreamID, error) {
	msPart, seqPart, hasSeq := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return StreamID{}, ErrStreamIDInvalid
	}
	if !hasSeq {
		return StreamID{Ms: ms, Seq: defSeq}, nil
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return StreamID{}, ErrStreamIDInvalid
	}
	return StreamID{Ms: ms, Seq: seq}, nil
}

// ParseRangeStart parses the start of an XRANGE interval: "-", an ID or an
// exclusive "(" ID. The result is the first ID included in the range
func ParseRangeStart(s string) (StreamID, error) {
	if s == "-" {
		return MinStreamID, nil
	}
	if strings.HasPrefix(s, "(") {
		id, err := ParseStreamID(s[1:], 0)
		if err != nil {
			return StreamID{}, err
		}
		next, ok := id.Next()
		if !ok {
			return StreamID{}, ErrStreamIDInvalid
		}
		return next, nil
	}
	return ParseStreamID(s, 0)
}

// ParseRangeEnd parses the end of an XRANGE interval: "+", an ID or an
// exclusive "(" ID. The result is the last ID included in the range
func ParseRangeEnd(s string) (StreamID, error) {
	if s == "+" {
		return MaxStreamID, nil
	}
	if strings.HasPrefix(s, "(") {
		id, err := ParseStreamID(s[1:], math.MaxUint64)
		if err != nil {
			return StreamID{}, err
		}
		prev, ok := id.Prev()
		if !ok {
			return StreamID{}, ErrStreamIDInvalid
		}
		return prev, nil
	}
	return ParseStreamID(s, math.MaxUint64)
}
