package resp

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

const (
	maxBulkLen  = 512 * 1024 * 1024
	maxArrayLen = 1024 * 1024
)

var (
	ErrInvalidEnding = errors.New("invalid line ending")
	ErrProtocol      = errors.New("protocol error")
)

// Decoder reads RESP values from a buffered stream.
// Anything that does not start with a RESP type byte is parsed as an inline command
type Decoder struct {
	rd *bufio.Reader
}

// NewDecoder wraps r in a buffered RESP decoder
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{rd: bufio.NewReader(r)}
}

// Buffered returns the number of bytes that can be read from the current buffer
func (d *Decoder) Buffered() int {
	return d.rd.Buffered()
}

// Read decodes the next value
func (d *Decoder) Read() (Value, error) {
	typ, err := d.rd.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch typ {
	case TypeSimpleString, TypeError:
		line, err := d.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: typ, String: line}, nil

	case TypeInteger:
		n, err := d.readInteger()
		if err != nil {
			return Value{}, err
		}
		return MakeInteger(n), nil

	case TypeBulkString:
		return d.readBulk()

	case TypeArray, TypeSet, TypePush, TypeMap:
		n, err := d.readInteger()
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{Type: TypeArray, IsNull: true}, nil
		}
		count := n
		if typ == TypeMap {
			count = n * 2
		}
		if count > maxArrayLen {
			return Value{}, errors.Wrap(ErrProtocol, "invalid multibulk length")
		}
		items := make([]Value, count)
		for i := range items {
			if items[i], err = d.Read(); err != nil {
				return Value{}, err
			}
		}
		return Value{Type: typ, Array: items}, nil

	case TypeNull:
		if _, err := d.readLine(); err != nil {
			return Value{}, err
		}
		return Value{Type: TypeNull, IsNull: true}, nil

	case TypeDouble:
		line, err := d.readLine()
		if err != nil {
			return Value{}, err
		}
		f, err := strconv.ParseFloat(string(line), 64)
		if err != nil {
			return Value{}, errors.Wrap(ErrProtocol, "invalid double")
		}
		return MakeDouble(f), nil

	case TypeBoolean:
		line, err := d.readLine()
		if err != nil {
			return Value{}, err
		}
		return MakeBool(string(line) == "t"), nil
	}

	if err := d.rd.UnreadByte(); err != nil {
		return Value{}, err
	}
	return d.readInline()
}

func (d *Decoder) readBulk() (Value, error) {
	n, err := d.readInteger()
	if err != nil {
		return Value{}, err
	}
	if n < 0 {
		return MakeNilBulkString(), nil
	}
	if n > maxBulkLen {
		return Value{}, errors.Wrap(ErrProtocol, "invalid bulk length")
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(d.rd, buf); err != nil {
		return Value{}, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return Value{}, ErrInvalidEnding
	}
	return Value{Type: TypeBulkString, String: buf[:n]}, nil
}

// readInline parses a plain text command line such as `SET k "hello world"`
func (d *Decoder) readInline() (Value, error) {
	line, err := d.rd.ReadBytes('\n')
	if err != nil {
		return Value{}, err
	}
	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	args, err := splitInline(string(line))
	if err != nil {
		return Value{}, err
	}
	return MakeBulkArray(args), nil
}

func splitInline(line string) ([]string, error) {
	var (
		args  []string
		cur   []byte
		quote byte
		inArg bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			if c == '\\' && quote == '"' && i+1 < len(line) {
				i++
				switch line[i] {
				case 'n':
					c = '\n'
				case 'r':
					c = '\r'
				case 't':
					c = '\t'
				default:
					c = line[i]
				}
			}
			cur = append(cur, c)
		case c == '"' || c == '\'':
			quote = c
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, string(cur))
				cur = cur[:0]
				inArg = false
			}
		default:
			cur = append(cur, c)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.Wrap(ErrProtocol, "unbalanced quotes in request")
	}
	if inArg {
		args = append(args, string(cur))
	}
	return args, nil
}

// readLine reads up to CRLF and strips it
func (d *Decoder) readLine() ([]byte, error) {
	line, err := d.rd.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, ErrInvalidEnding
	}

	return line[:len(line)-2], nil
}

func (d *Decoder) readInteger() (int64, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}

	// Command with integer cant be empty
	if len(line) == 0 {
		return 0, ErrInvalidEnding
	}

	num, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, errors.Wrap(ErrProtocol, err.Error())
	}

	return num, nil
}
