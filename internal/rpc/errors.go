package rpc

import (
	"errors"

	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/internal/token"
)

// Kinds reported for failures outside the staking taxonomy.
const (
	kindCustody = "CustodyViolation"
	kindRuntime = "RuntimeViolation"
)

var custodyCodes = []struct {
	err  error
	code string
}{
	{token.ErrInsufficientFunds, "InsufficientFunds"},
	{token.ErrOwnerMismatch, "OwnerMismatch"},
	{token.ErrMintMismatch, "MintMismatch"},
	{token.ErrAccountNotFound, "AccountNotFound"},
	{token.ErrAccountExists, "AccountAlreadyExists"},
	{token.ErrAccountNotEmpty, "AccountNotEmpty"},
	{token.ErrOverflow, "ArithmeticOverflow"},
}

var runtimeCodes = []struct {
	err  error
	code string
}{
	{engine.ErrBadSignature, "BadSignature"},
	{engine.ErrDuplicateInstruction, "DuplicateInstruction"},
	{engine.ErrStaleInstruction, "StaleInstruction"},
	{engine.ErrUnknownInstruction, "UnknownInstruction"},
	{engine.ErrWrongProgram, "WrongProgram"},
	{engine.ErrInvalidParams, "InvalidParams"},
}

// instructionError converts a Submit failure into a JSON-RPC error whose
// data carries the failure kind and code.
func instructionError(err error) *Error {
	data, ok := classify(err)
	if !ok {
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &Error{Code: CodeInstructionFailed, Message: err.Error(), Data: data}
}

func classify(err error) (FailureData, bool) {
	if se, ok := staking.AsError(err); ok {
		return FailureData{Kind: string(se.Kind), Code: se.Code}, true
	}
	for _, c := range custodyCodes {
		if errors.Is(err, c.err) {
			return FailureData{Kind: kindCustody, Code: c.code}, true
		}
	}
	for _, c := range runtimeCodes {
		if errors.Is(err, c.err) {
			return FailureData{Kind: kindRuntime, Code: c.code}, true
		}
	}
	return FailureData{}, false
}

// queryError converts a read failure into a JSON-RPC error.
func queryError(err error) *Error {
	if staking.IsAccountNotFound(err) || errors.Is(err, engine.ErrReceiptNotFound) {
		return &Error{Code: CodeNotFound, Message: err.Error()}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
