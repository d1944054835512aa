package server

import (
	"strings"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Extension plugs an additional value kind into the engine together with the
// commands operating on it. Values implement storage.Value with
// storage.KindExtension and storage.Named for their TYPE reply
type Extension interface {
	Name() string
	Commands() []ExtensionCommand
}

// ExtensionCommand describes one command contributed by an Extension
type ExtensionCommand struct {
	Name    string
	Handler func(ctx *Context) resp.Value
	// Arity follows the COMMAND convention: it counts the name, negative means at least
	Arity int
	// Flags is a space separated list such as "write denyoom fast"
	Flags string
	// FirstKey, LastKey and KeyStep locate key arguments, 1-based
	FirstKey, LastKey, KeyStep int
	Summary                    string
}

// RegisterExtension adds the commands of ext. Names clashing with a registered
// command are rejected and nothing is added
func (e *Engine) RegisterExtension(ext Extension) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cmds := ext.Commands()
	for _, c := range cmds {
		if _, ok := e.registry.lookup(c.Name); ok {
			return errors.Errorf("extension %s: command %s already registered", ext.Name(), c.Name)
		}
		if c.Handler == nil || c.Arity == 0 {
			return errors.Errorf("extension %s: command %s needs a handler and an arity", ext.Name(), c.Name)
		}
	}

	for _, c := range cmds {
		keys := keySpec{first: c.FirstKey, last: c.LastKey, step: c.KeyStep}
		if keys.first > 0 && keys.step <= 0 {
			keys.step = 1
		}
		e.registry.commands[strings.ToUpper(c.Name)] = &commandSpec{
			name:    strings.ToUpper(c.Name),
			handler: c.Handler,
			arity:   c.Arity,
			flags:   parseFlags(c.Flags),
			keys:    keys,
			kind:    anyKind,
			since:   e.version.String(),
			group:   "module",
			summary: c.Summary,
		}
	}
	e.logger.Info("extension registered", zap.String("name", ext.Name()), zap.Int("commands", len(cmds)))
	return nil
}

// ErrorReply converts err into an error reply the way built-in commands do
func ErrorReply(err error) resp.Value {
	return errorReply(err)
}

// WrongArity is the reply for a command called with a bad argument count
func WrongArity(ctx *Context) resp.Value {
	return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(ctx.name))
}
