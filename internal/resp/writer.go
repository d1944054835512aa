package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Encoder handles the serialization of RESP Value objects into an output stream.
// Replies are buffered until Flush so pipelined requests are answered in one write
type Encoder struct {
	writer *bufio.Writer
	proto  int
}

// NewEncoder initializes an Encoder with a buffered writer speaking RESP2
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w),
		proto:  2,
	}
}

// SetProtocol switches between RESP2 and RESP3 encoding
func (e *Encoder) SetProtocol(proto int) {
	e.proto = proto
}

// Write serializes a RESP Value into the buffer
func (e *Encoder) Write(v Value) error {
	switch v.Type {
	case TypeInteger:
		return e.writeHeader(':', v.Integer)

	case TypeSimpleString:
		return e.writeRaw('+', v.String)

	case TypeError:
		return e.writeRaw('-', v.String)

	case TypeBulkString:
		if v.IsNull {
			return e.writeNull("$-1\r\n")
		}
		return e.writeBulk(v.String)

	case TypeNull:
		return e.writeNull("$-1\r\n")

	case TypeDouble:
		s := FormatDouble(v.Double)
		if e.proto < 3 {
			return e.writeBulk([]byte(s))
		}
		return e.writeRaw(',', []byte(s))

	case TypeBoolean:
		if e.proto < 3 {
			return e.writeHeader(':', v.Integer)
		}
		b := []byte("f")
		if v.Integer != 0 {
			b = []byte("t")
		}
		return e.writeRaw('#', b)

	case TypeArray:
		if v.IsNull {
			return e.writeNull("*-1\r\n")
		}
		return e.writeAggregate('*', int64(len(v.Array)), v.Array)

	case TypeSet:
		prefix := byte('~')
		if e.proto < 3 {
			prefix = '*'
		}
		return e.writeAggregate(prefix, int64(len(v.Array)), v.Array)

	case TypePush:
		prefix := byte('>')
		if e.proto < 3 {
			prefix = '*'
		}
		return e.writeAggregate(prefix, int64(len(v.Array)), v.Array)

	case TypeMap:
		if e.proto < 3 {
			return e.writeAggregate('*', int64(len(v.Array)), v.Array)
		}
		return e.writeAggregate('%', int64(len(v.Array)/2), v.Array)

	case TypeSequence:
		for _, el := range v.Array {
			if err := e.Write(el); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush sends all buffered data to the underlying writer
func (e *Encoder) Flush() error {
	return e.writer.Flush()
}

func (e *Encoder) writeNull(resp2 string) error {
	if e.proto >= 3 {
		_, err := e.writer.WriteString("_\r\n")
		return err
	}
	_, err := e.writer.WriteString(resp2)
	return err
}

func (e *Encoder) writeBulk(b []byte) error {
	if err := e.writeHeader('$', int64(len(b))); err != nil {
		return err
	}
	if _, err := e.writer.Write(b); err != nil {
		return err
	}
	_, err := e.writer.WriteString("\r\n")
	return err
}

func (e *Encoder) writeAggregate(prefix byte, n int64, items []Value) error {
	if err := e.writeHeader(prefix, n); err != nil {
		return err
	}
	for _, el := range items {
		if err := e.Write(el); err != nil {
			return err
		}
	}
	return nil
}

// writeHeader writes the type prefix, numeric value, and CRLF
func (e *Encoder) writeHeader(prefix byte, n int64) error {
	if err := e.writer.WriteByte(prefix); err != nil {
		return err
	}
	e.appendInt(n)
	_, err := e.writer.WriteString("\r\n")
	return err
}

// writeRaw writes the type prefix, raw bytes, and CRLF (for SimpleString and Error)
func (e *Encoder) writeRaw(prefix byte, b []byte) error {
	if err := e.writer.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := e.writer.Write(b); err != nil {
		return err
	}
	_, err := e.writer.WriteString("\r\n")
	return err
}

// appendInt converts an integer to a string and writes it to the buffer
func (e *Encoder) appendInt(n int64) {
	b := e.writer.AvailableBuffer()
	b = strconv.AppendInt(b, n, 10)
	e.writer.Write(b) //nolint:errcheck
}
