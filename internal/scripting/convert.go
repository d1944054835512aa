package scripting

import (
	"github.com/eternalApril/moonmock/internal/resp"
	lua "github.com/yuin/gopher-lua"
)

// toLua converts a command reply into the value redis.call returns, using the
// RESP2 conversion rules
func toLua(L *lua.LState, v resp.Value) lua.LValue {
	switch v.Type {
	case resp.TypeInteger:
		return lua.LNumber(v.Integer)
	case resp.TypeBulkString:
		if v.IsNull {
			return lua.LFalse
		}
		return lua.LString(v.String)
	case resp.TypeSimpleString:
		t := L.NewTable()
		t.RawSetString("ok", lua.LString(v.String))
		return t
	case resp.TypeError:
		return errorTable(L, string(v.String))
	case resp.TypeNull:
		return lua.LFalse
	case resp.TypeBoolean:
		if v.Integer != 0 {
			return lua.LNumber(1)
		}
		return lua.LFalse
	case resp.TypeDouble:
		return lua.LString(resp.FormatDouble(v.Double))
	case resp.TypeArray, resp.TypeSet, resp.TypePush, resp.TypeMap:
		if v.IsNull {
			return lua.LFalse
		}
		t := L.CreateTable(len(v.Array), 0)
		for _, el := range v.Array {
			t.Append(toLua(L, el))
		}
		return t
	}
	return lua.LFalse
}

// toReply converts the value a script returns. Numbers truncate to integers,
// false becomes nil, and tables stop at their first nil element
func toReply(v lua.LValue) resp.Value {
	switch t := v.(type) {
	case lua.LNumber:
		return resp.MakeInteger(int64(t))
	case lua.LString:
		return resp.MakeBulkString(string(t))
	case lua.LBool:
		if t {
			return resp.MakeInteger(1)
		}
		return resp.MakeNilBulkString()
	case *lua.LTable:
		if msg, ok := t.RawGetString("err").(lua.LString); ok {
			return resp.MakeError(string(msg))
		}
		if msg, ok := t.RawGetString("ok").(lua.LString); ok {
			return resp.MakeSimpleString(string(msg))
		}
		var out []resp.Value
		for i := 1; ; i++ {
			el := t.RawGetInt(i)
			if el == lua.LNil {
				break
			}
			out = append(out, toReply(el))
		}
		return resp.MakeArray(out)
	}
	return resp.MakeNilBulkString()
}
