package resp

import (
	"bytes"
)

// EncodeCommand renders args as a request: an array of bulk strings, the form
// every client sends and ReadCommand on the server side accepts
func EncodeCommand(args ...string) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	// writes to a bytes.Buffer cannot fail
	enc.Write(MakeBulkArray(args)) //nolint:errcheck
	enc.Flush()                    //nolint:errcheck
	return buf.Bytes()
}
