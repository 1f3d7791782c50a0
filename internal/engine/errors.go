package engine

import "errors"

// Runtime errors. Program failures pass through unchanged.
var (
	ErrBadSignature         = errors.New("bad instruction signature")
	ErrDuplicateInstruction = errors.New("instruction already processed")
	ErrStaleInstruction     = errors.New("instruction timestamp outside allowed skew")
	ErrUnknownInstruction   = errors.New("unknown instruction")
	ErrWrongProgram         = errors.New("instruction addressed to another program")
	ErrInvalidParams        = errors.New("invalid instruction params")
	ErrReceiptNotFound      = errors.New("receipt not found")
)
