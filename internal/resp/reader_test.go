package resp_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr error
	}{
		{
			name:    "Valid positive",
			input:   ":1000\r\n",
			want:    1000,
			wantErr: nil,
		},
		{
			name:    "Valid positive with +",
			input:   ":+1230\r\n",
			want:    1230,
			wantErr: nil,
		},
		{
			name:    "Valid negative",
			input:   ":-15\r\n",
			want:    -15,
			wantErr: nil,
		},
		{
			name:    "Valid zero",
			input:   ":0\r\n",
			want:    0,
			wantErr: nil,
		},
		{
			name:    "Invalid ending",
			input:   ":1000\n",
			want:    0,
			wantErr: resp.ErrInvalidEnding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resp.NewDecoder(strings.NewReader(tt.input))

			val, err := r.Read()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Read() expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("Read() unexpected error %v", err)
			}

			if val.Type != resp.TypeInteger {
				t.Errorf("Read() type = %v, want %v", val.Type, resp.TypeInteger)
			}

			if val.Integer != tt.want {
				t.Errorf("Read() num = %v, want %v", val.Integer, tt.want)
			}
		})
	}
}

func TestReadCommand(t *testing.T) {
	input := "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nva\r\nl\r\n"
	r := resp.NewDecoder(strings.NewReader(input))

	val, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, byte(resp.TypeArray), val.Type)
	require.Len(t, val.Array, 3)
	assert.Equal(t, "SET", val.Array[0].Text())
	assert.Equal(t, "key", val.Array[1].Text())
	assert.Equal(t, "va\r\nl", val.Array[2].Text())

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadInline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"Plain", "PING\r\n", []string{"PING"}},
		{"Args", "SET a  b\n", []string{"SET", "a", "b"}},
		{"Double quotes", "SET k \"hello world\\n\"\r\n", []string{"SET", "k", "hello world\n"}},
		{"Single quotes", "ECHO 'a b'\r\n", []string{"ECHO", "a b"}},
		{"Empty quoted", "SET k \"\"\r\n", []string{"SET", "k", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := resp.NewDecoder(strings.NewReader(tt.input)).Read()
			require.NoError(t, err)

			got := make([]string, len(val.Array))
			for i, v := range val.Array {
				got[i] = v.Text()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadReplies(t *testing.T) {
	input := "+OK\r\n-ERR bad\r\n$-1\r\n*-1\r\n_\r\n,1.5\r\n#t\r\n%1\r\n$1\r\na\r\n:1\r\n"
	r := resp.NewDecoder(strings.NewReader(input))

	v, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "OK", v.Text())

	v, err = r.Read()
	require.NoError(t, err)
	assert.True(t, v.IsError())

	v, err = r.Read()
	require.NoError(t, err)
	assert.True(t, v.IsNull)

	v, err = r.Read()
	require.NoError(t, err)
	assert.True(t, v.IsNull)
	assert.Equal(t, byte(resp.TypeArray), v.Type)

	v, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, byte(resp.TypeNull), v.Type)

	v, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, 1.5, v.Double)

	v, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Integer)

	v, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, byte(resp.TypeMap), v.Type)
	assert.Len(t, v.Array, 2)
}

func TestReadProtocolErrors(t *testing.T) {
	_, err := resp.NewDecoder(strings.NewReader("$abc\r\n")).Read()
	assert.ErrorIs(t, err, resp.ErrProtocol)

	_, err = resp.NewDecoder(strings.NewReader("SET \"unterminated\r\n")).Read()
	assert.ErrorIs(t, err, resp.ErrProtocol)

	_, err = resp.NewDecoder(strings.NewReader("$3\r\nabcde")).Read()
	assert.Error(t, err)
}

func TestEncodeCommandRoundTrip(t *testing.T) {
	payload := resp.EncodeCommand("SET", "k", "hello world", "")
	assert.Equal(t, "*4\r\n$3\r\nSET\r\n$1\r\nk\r\n$11\r\nhello world\r\n$0\r\n\r\n", string(payload))

	v, err := resp.NewDecoder(strings.NewReader(string(payload))).Read()
	require.NoError(t, err)
	assert.Equal(t, resp.MakeBulkArray([]string{"SET", "k", "hello world", ""}), v)
}
