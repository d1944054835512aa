package server

import (
	"fmt"
	"strings"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
	"github.com/pkg/errors"
)

// replyError is an error whose text is sent to the client verbatim
type replyError string

func (e replyError) Error() string { return string(e) }

const (
	errWrongType     replyError = "WRONGTYPE Operation against a key holding the wrong kind of value"
	errSyntax        replyError = "ERR syntax error"
	errNotInteger    replyError = "ERR value is not an integer or out of range"
	errNotFloat      replyError = "ERR value is not a valid float"
	errNoSuchKey     replyError = "ERR no such key"
	errInternal      replyError = "ERR internal error"
	errTimeout       replyError = "ERR timeout is not a float or out of range"
	errTimeoutNeg    replyError = "ERR timeout is negative"
	errExpireTime    replyError = "ERR invalid expire time in '%s' command"
	errNestedMulti   replyError = "ERR MULTI calls can not be nested"
	errExecNoMulti   replyError = "ERR EXEC without MULTI"
	errDiscardNo     replyError = "ERR DISCARD without MULTI"
	errWatchInMulti  replyError = "ERR WATCH inside MULTI is not allowed"
	errExecAbort     replyError = "EXECABORT Transaction discarded because of previous errors."
	errDBIndex       replyError = "ERR DB index is out of range"
	errInvalidDB     replyError = "ERR invalid DB index"
	errSameObject    replyError = "ERR source and destination objects are the same"
	errNoScript      replyError = "NOSCRIPT No matching script. Please use EVAL."
	errNotInScript   replyError = "ERR This Redis command is not allowed from script"
	errNegativeCount replyError = "ERR value is out of range, must be positive"
	errOffsetRange   replyError = "ERR offset is out of range"
	errNumKeys       replyError = "ERR numkeys should be greater than 0"
	errClientName    replyError = "ERR Client names cannot contain spaces, newlines or special characters."
	errPubSubContext replyError = "ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context"
)

// formatted returns a replyError built from a template error
func formatted(tmpl replyError, args ...any) replyError {
	return replyError(fmt.Sprintf(string(tmpl), args...))
}

// codes holds domain errors that do not use the generic ERR prefix
var codes = map[error]string{
	datatype.ErrStreamGroupExists: "BUSYGROUP",
	datatype.ErrStreamNoGroup:     "NOGROUP",
}

// errorReply converts an error coming from a handler or a domain package into
// the reply sent to the client
func errorReply(err error) resp.Value {
	cause := errors.Cause(err)

	var re replyError
	if errors.As(cause, &re) {
		return resp.MakeError(string(re))
	}

	switch cause {
	case storage.ErrNoSuchKey:
		return resp.MakeError(string(errNoSuchKey))
	case storage.ErrDBIndex:
		return resp.MakeError(string(errDBIndex))
	case storage.ErrSameObject:
		return resp.MakeError(string(errSameObject))
	case storage.ErrVersionRegress:
		return resp.MakeError(string(errInternal))
	}

	if code, ok := codes[cause]; ok {
		return resp.MakeError(code + " " + cause.Error())
	}
	return resp.MakeError("ERR " + cause.Error())
}

// unknownCommand builds the reply for a command missing from the registry
func unknownCommand(name string, args []string) resp.Value {
	var b strings.Builder
	for _, a := range args {
		if b.Len() > 128 {
			break
		}
		fmt.Fprintf(&b, "'%s' ", a)
	}
	return resp.MakeError(fmt.Sprintf("ERR unknown command '%s', with args beginning with: %s", name, b.String()))
}

// unknownSubcommand builds the reply for an unsupported subcommand
func unknownSubcommand(cmd, sub string) resp.Value {
	return resp.MakeError(fmt.Sprintf("ERR unknown subcommand '%s'. Try %s HELP.", sub, strings.ToUpper(cmd)))
}
