package server

import (
	"strings"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func registerBitCommands(r *registry) {
	str := storage.KindString
	r.add("SETBIT", setBit, 4, "write denyoom", oneKey, str, "2.2.0",
		"Sets or clears the bit at offset of the string value. Creates the key if it doesn't exist.")
	r.add("GETBIT", getBit, 3, "readonly fast", oneKey, str, "2.2.0",
		"Returns a bit value by offset.")
	r.add("BITCOUNT", bitCount, -2, "readonly", oneKey, str, "2.6.0",
		"Counts the number of set bits (population counting) in a string.")
	r.add("BITPOS", bitPos, -3, "readonly", oneKey, str, "2.8.7",
		"Finds the first set (1) or clear (0) bit in a string.")
	r.add("BITOP", bitOp, -4, "write denyoom", keySpec{2, -1, 1}, anyKind, "2.6.0",
		"Performs bitwise operations on multiple strings, and stores the result.")
}

func parseBitOffset(s string) (int64, error) {
	n, err := datatype.ParseInt(s)
	if err != nil || n < 0 || n > datatype.MaxBitOffset {
		return 0, datatype.ErrBitOffset
	}
	return n, nil
}

func setBit(ctx *Context) resp.Value {
	key := ctx.args[0]
	offset, err := parseBitOffset(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	var on bool
	switch ctx.args[2] {
	case "0":
	case "1":
		on = true
	default:
		return errorReply(datatype.ErrBitValue)
	}

	s, err := obtain(ctx, key, func() *datatype.String { return datatype.NewString(nil) })
	if err != nil {
		return errorReply(err)
	}
	old, err := s.SetBit(offset, on)
	if err != nil {
		return errorReply(err)
	}
	ctx.written(key, "setbit", notifyString)
	return intReply(old)
}

func getBit(ctx *Context) resp.Value {
	offset, err := parseBitOffset(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	s, ok, err := lookupAs[*datatype.String](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(s.GetBit(offset))
}

// parseBitUnit parses the optional trailing BYTE or BIT of BITCOUNT and BITPOS
func parseBitUnit(ctx *Context, args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		switch strings.ToUpper(args[0]) {
		case "BYTE":
			return false, nil
		case "BIT":
			if ctx.option("BIT") {
				return true, nil
			}
		}
	}
	return false, errSyntax
}

func bitCount(ctx *Context) resp.Value {
	start, end := int64(0), int64(-1)
	bitMode := false
	switch n := len(ctx.args); {
	case n == 2:
		return errorReply(errSyntax)
	case n >= 3:
		var err error
		if start, err = parseInt(ctx.args[1]); err != nil {
			return errorReply(err)
		}
		if end, err = parseInt(ctx.args[2]); err != nil {
			return errorReply(err)
		}
		if bitMode, err = parseBitUnit(ctx, ctx.args[3:]); err != nil {
			return errorReply(err)
		}
	}

	s, ok, err := lookupAs[*datatype.String](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return resp.MakeInteger(s.BitCount(start, end, bitMode))
}

func bitPos(ctx *Context) resp.Value {
	var bit int
	switch ctx.args[1] {
	case "0":
	case "1":
		bit = 1
	default:
		return resp.MakeError("ERR The bit argument must be 1 or 0.")
	}

	start, end := int64(0), int64(-1)
	endGiven, bitMode := false, false
	var err error
	if len(ctx.args) > 2 {
		if start, err = parseInt(ctx.args[2]); err != nil {
			return errorReply(err)
		}
	}
	if len(ctx.args) > 3 {
		if end, err = parseInt(ctx.args[3]); err != nil {
			return errorReply(err)
		}
		endGiven = true
		if bitMode, err = parseBitUnit(ctx, ctx.args[4:]); err != nil {
			return errorReply(err)
		}
	}

	s, ok, err := lookupAs[*datatype.String](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if bit == 1 {
			return resp.MakeInteger(-1)
		}
		return resp.MakeInteger(0)
	}
	return resp.MakeInteger(s.BitPos(bit, start, end, endGiven, bitMode))
}

func bitOp(ctx *Context) resp.Value {
	op := strings.ToUpper(ctx.args[0])
	dest := ctx.args[1]
	srcKeys := ctx.args[2:]
	if op == "NOT" && len(srcKeys) != 1 {
		return resp.MakeError("ERR BITOP NOT must be called with a single source key.")
	}

	srcs := make([][]byte, len(srcKeys))
	for i, key := range srcKeys {
		s, ok, err := lookupAs[*datatype.String](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if ok {
			srcs[i] = s.Bytes()
		}
	}
	out, err := datatype.BitOp(op, srcs)
	if err != nil {
		return errorReply(errSyntax)
	}

	if len(out) == 0 {
		if ctx.db.Delete(dest) {
			ctx.written(dest, "del", notifyGeneric)
		}
		return resp.MakeInteger(0)
	}
	if err := ctx.db.Set(dest, datatype.NewString(out), false); err != nil {
		return errorReply(err)
	}
	ctx.written(dest, "set", notifyString)
	return intReply(len(out))
}
