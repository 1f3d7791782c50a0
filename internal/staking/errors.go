package staking

import (
	"errors"
	"fmt"
)

// ErrorKind classifies instruction failures.
type ErrorKind string

// Error kinds.
const (
	KindState         ErrorKind = "StateViolation"
	KindPolicy        ErrorKind = "PolicyViolation"
	KindCapacity      ErrorKind = "CapacityViolation"
	KindAccounting    ErrorKind = "AccountingViolation"
	KindAuthorization ErrorKind = "AuthorizationViolation"
	KindAccount       ErrorKind = "AccountViolation"
)

// Error is a classified instruction failure. Sentinels are compared with
// errors.Is; wrap them with fmt.Errorf("%w: ...") to add detail.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// State violations.
var (
	ErrTierAlreadyUsed   = newError(KindState, "TierAlreadyUsed", "tier already used")
	ErrNoStakeInTier     = newError(KindState, "NoStakeInTier", "no stake in this tier")
	ErrNoStakesForUser   = newError(KindState, "NoStakesForUser", "user has no active stakes")
	ErrPendingReward     = newError(KindState, "PendingReward", "pending reward must be claimed first")
	ErrTimeLockNotPassed = newError(KindState, "TimeLockNotPassed", "time lock has not passed yet")
)

// Policy violations.
var (
	ErrPoolPaused              = newError(KindPolicy, "PoolPaused", "pool is paused")
	ErrPoolClosedForNewStaking = newError(KindPolicy, "PoolClosedForNewStaking", "pool is closed for new staking")
	ErrPoolAlreadyPaused       = newError(KindPolicy, "PoolAlreadyPaused", "pool is already paused")
	ErrPoolAlreadyUnpaused     = newError(KindPolicy, "PoolAlreadyUnpaused", "pool is already unpaused")
	ErrPoolAlreadyClosed       = newError(KindPolicy, "PoolAlreadyClosed", "pool is already closed")
	ErrPoolAlreadyOpen         = newError(KindPolicy, "PoolAlreadyOpen", "pool is already open")
	ErrPoolHasToBeClosed       = newError(KindPolicy, "PoolHasToBeClosed", "pool has to be closed")
)

// Capacity violations.
var ErrNoAvailableSlot = newError(KindCapacity, "NoAvailableSlot", "no available slot for tier")

// Accounting violations.
var (
	ErrAmountMustBeGreaterThanZero = newError(KindAccounting, "AmountMustBeGreaterThanZero", "amount must be greater than zero")
	ErrAmountMustBeZero            = newError(KindAccounting, "AmountMustBeZero", "vault amount must be zero")
	ErrUserHasActiveStakes         = newError(KindAccounting, "UserHasActiveStakes", "user has active stakes")
	ErrOnlyExtraWithdrawal         = newError(KindAccounting, "OnlyExtraWithdrawal", "only extra reward can be withdrawn")
	ErrArithmeticOverflow          = newError(KindAccounting, "ArithmeticOverflow", "arithmetic overflow")
)

// Authorization violations.
var ErrUnauthorized = newError(KindAuthorization, "Unauthorized", "signer is not the pool authority")

// Account violations.
var (
	ErrAccountNotFound      = newError(KindAccount, "AccountNotFound", "account not found")
	ErrAccountAlreadyExists = newError(KindAccount, "AccountAlreadyExists", "account already exists")
	ErrAccountMismatch      = newError(KindAccount, "AccountMismatch", "account does not belong to this pool")
	ErrInvalidRewardTier    = newError(KindAccount, "InvalidRewardTier", "invalid reward tier")
	ErrInvalidTier          = newError(KindAccount, "InvalidTier", "tier index out of range")
	ErrInvalidSeed          = newError(KindAccount, "InvalidSeed", "invalid pool seed")
)

// AsError extracts the classified error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
