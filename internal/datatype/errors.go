package datatype

import "github.com/pkg/errors"

// Errors returned by the type engines. The text is the reply payload without the
// error code, the dispatcher prefixes it
var (
	ErrNotInteger     = errors.New("value is not an integer or out of range")
	ErrNotFloat       = errors.New("value is not a valid float")
	ErrOverflow       = errors.New("increment or decrement would overflow")
	ErrNaN            = errors.New("increment would produce NaN or Infinity")
	ErrStringTooLong  = errors.New("string exceeds maximum allowed size (proto-max-bulk-len)")
	ErrBitOffset      = errors.New("bit offset is not an integer or out of range")
	ErrBitValue       = errors.New("bit is not an integer or out of range")
	ErrIndexRange     = errors.New("index out of range")
	ErrOffsetRange    = errors.New("offset is out of range")
	ErrHashNotInteger = errors.New("hash value is not an integer")
	ErrHashNotFloat   = errors.New("hash value is not a float")
	ErrScoreNaN       = errors.New("resulting score is not a number (NaN)")
	ErrMinMaxFloat    = errors.New("min or max is not a float")
	ErrMinMaxLex      = errors.New("min or max not valid string range item")

	ErrStreamIDZero      = errors.New("The ID specified in XADD must be greater than 0-0")
	ErrStreamIDSmall     = errors.New("The ID specified in XADD is equal or smaller than the target stream top item")
	ErrStreamIDInvalid   = errors.New("Invalid stream ID specified as stream command argument")
	ErrStreamExhausted   = errors.New("The stream has exhausted the last possible ID, unable to add more items")
	ErrStreamGroupExists = errors.New("Consumer Group name already exists")
	ErrStreamNoGroup     = errors.New("No such consumer group for key")
	ErrStreamSetIDSmall  = errors.New("The ID specified in XSETID is smaller than the target stream top item")
)

// MaxStringLen is the largest string value a key may hold
const MaxStringLen = 512 << 20
