package resp_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/eternalApril/moonmock/internal/resp"
)

func TestEncoder_Write(t *testing.T) {
	tests := []struct {
		name     string
		input    resp.Value
		expected string
	}{
		{
			name:     "Integer positive",
			input:    resp.Value{Type: resp.TypeInteger, Integer: 100},
			expected: ":100\r\n",
		},
		{
			name:     "Integer negative",
			input:    resp.Value{Type: resp.TypeInteger, Integer: -42},
			expected: ":-42\r\n",
		},
		{
			name:     "Simple String",
			input:    resp.Value{Type: resp.TypeSimpleString, String: []byte("OK")},
			expected: "+OK\r\n",
		},
		{
			name:     "Error",
			input:    resp.Value{Type: resp.TypeError, String: []byte("Error message")},
			expected: "-Error message\r\n",
		},
		{
			name:     "Bulk String",
			input:    resp.Value{Type: resp.TypeBulkString, String: []byte("hello")},
			expected: "$5\r\nhello\r\n",
		},
		{
			name:     "Bulk String Empty",
			input:    resp.Value{Type: resp.TypeBulkString, String: []byte("")},
			expected: "$0\r\n\r\n",
		},
		{
			name:     "Bulk String Null",
			input:    resp.Value{Type: resp.TypeBulkString, IsNull: true},
			expected: "$-1\r\n",
		},
		{
			name: "Array of Strings",
			input: resp.Value{
				Type: resp.TypeArray,
				Array: []resp.Value{
					{Type: resp.TypeBulkString, String: []byte("fff")},
					{Type: resp.TypeBulkString, String: []byte("ttt")},
				},
			},
			expected: "*2\r\n$3\r\nfff\r\n$3\r\nttt\r\n",
		},
		{
			name:     "Array Null",
			input:    resp.Value{Type: resp.TypeArray, IsNull: true},
			expected: "*-1\r\n",
		},
		{
			name:     "Array Empty",
			input:    resp.Value{Type: resp.TypeArray, Array: []resp.Value{}},
			expected: "*0\r\n",
		},
		{
			name: "Mixed Array",
			input: resp.Value{
				Type: resp.TypeArray,
				Array: []resp.Value{
					{Type: resp.TypeInteger, Integer: 1},
					{Type: resp.TypeArray, Array: []resp.Value{
						{Type: resp.TypeSimpleString, String: []byte("inner")},
					}},
				},
			},
			expected: "*2\r\n:1\r\n*1\r\n+inner\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := resp.NewEncoder(&buf)

			err := enc.Write(tt.input)
			if err != nil {
				t.Fatalf("Write() failed: %v", err)
			}

			err = enc.Flush()
			if err != nil {
				t.Fatalf("Flush() failed: %v", err)
			}

			if buf.String() != tt.expected {
				t.Errorf("Write() got = %q, want %q", buf.String(), tt.expected)
			}
		})
	}
}

func TestEncoder_RESP3(t *testing.T) {
	tests := []struct {
		name  string
		input resp.Value
		resp2 string
		resp3 string
	}{
		{
			name:  "Null bulk",
			input: resp.MakeNilBulkString(),
			resp2: "$-1\r\n",
			resp3: "_\r\n",
		},
		{
			name:  "Null array",
			input: resp.MakeNilArray(),
			resp2: "*-1\r\n",
			resp3: "_\r\n",
		},
		{
			name:  "Double",
			input: resp.MakeDouble(1.5),
			resp2: "$3\r\n1.5\r\n",
			resp3: ",1.5\r\n",
		},
		{
			name:  "Infinite double",
			input: resp.MakeDouble(math.Inf(1)),
			resp2: "$3\r\ninf\r\n",
			resp3: ",inf\r\n",
		},
		{
			name:  "Boolean",
			input: resp.MakeBool(true),
			resp2: ":1\r\n",
			resp3: "#t\r\n",
		},
		{
			name:  "Map",
			input: resp.MakeMap([]resp.Value{resp.MakeBulkString("a"), resp.MakeInteger(1)}),
			resp2: "*2\r\n$1\r\na\r\n:1\r\n",
			resp3: "%1\r\n$1\r\na\r\n:1\r\n",
		},
		{
			name:  "Set",
			input: resp.MakeSet([]string{"x"}),
			resp2: "*1\r\n$1\r\nx\r\n",
			resp3: "~1\r\n$1\r\nx\r\n",
		},
		{
			name:  "Push",
			input: resp.MakePush([]resp.Value{resp.MakeBulkString("message")}),
			resp2: "*1\r\n$7\r\nmessage\r\n",
			resp3: ">1\r\n$7\r\nmessage\r\n",
		},
		{
			name:  "Sequence",
			input: resp.MakeSequence([]resp.Value{resp.MakeInteger(1), resp.MakeInteger(2)}),
			resp2: ":1\r\n:2\r\n",
			resp3: ":1\r\n:2\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for proto, want := range map[int]string{2: tt.resp2, 3: tt.resp3} {
				var buf bytes.Buffer
				enc := resp.NewEncoder(&buf)
				enc.SetProtocol(proto)

				if err := enc.Write(tt.input); err != nil {
					t.Fatalf("Write() failed: %v", err)
				}
				if err := enc.Flush(); err != nil {
					t.Fatalf("Flush() failed: %v", err)
				}
				if buf.String() != want {
					t.Errorf("RESP%d got = %q, want %q", proto, buf.String(), want)
				}
			}
		})
	}
}

func TestFormatDouble(t *testing.T) {
	tests := map[float64]string{
		3:                   "3",
		-2:                  "-2",
		1.5:                 "1.5",
		0.1:                 "0.1",
		math.Inf(-1):        "-inf",
		1e20:                "1e+20",
		1234567.25:          "1234567.25",
		-98765432.125:       "-98765432.125",
		0.0001:              "0.0001",
		0.00001:             "1e-05",
		1e16:                "10000000000000000",
		1.5e17:              "1.5e+17",
		9007199254740992e10: "9.007199254740992e+25",
	}
	for in, want := range tests {
		if got := resp.FormatDouble(in); got != want {
			t.Errorf("FormatDouble(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEncoder_WriteError(t *testing.T) {
	errWriter := &errorWriter{}
	enc := resp.NewEncoder(errWriter)

	val := resp.Value{Type: resp.TypeSimpleString, String: []byte("test")}

	err := enc.Write(val)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	err = enc.Flush()
	if err == nil {
		t.Error("Expected error from Flush(), but got nil")
	}
}

type errorWriter struct{}

func (e *errorWriter) Write(_ []byte) (n int, err error) {
	return 0, io.ErrClosedPipe
}
