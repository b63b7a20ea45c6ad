// Package errs defines the error taxonomy shared by the settlement engine.
//
// Every error returned across a component boundary is an *E carrying a stable
// Code. The Code determines the Kind, and the Kind determines how callers react:
// Transient errors may be retried, Validation and Conflict errors are returned
// to the caller unchanged.
package errs

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindTransient
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type Code string

const (
	CodeInvalidStake       Code = "INVALID_STAKE"
	CodeInvalidOutcome     Code = "INVALID_OUTCOME"
	CodeInvalidCode        Code = "INVALID_CODE"
	CodeInvalidGameType    Code = "INVALID_GAME_TYPE"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeOutcomeUnavailable Code = "OUTCOME_UNAVAILABLE"

	CodeDuplicateFundingTx Code = "DUPLICATE_FUNDING_TX"
	CodeStaleNonce         Code = "STALE_NONCE"
	CodeAlreadyResolved    Code = "ALREADY_RESOLVED"
	CodeAlreadyClaimed     Code = "ALREADY_CLAIMED"
	CodeRoundClosed        Code = "ROUND_CLOSED"
	CodeRoundInProgress    Code = "ROUND_IN_PROGRESS"
	CodeSelfReferral       Code = "SELF_REFERRAL"
	CodeNotFunded          Code = "NOT_FUNDED"
	CodeBelowMinimum       Code = "BELOW_MINIMUM"
	CodeWagerFailed        Code = "WAGER_FAILED"
	CodeResultPending      Code = "RESULT_PENDING"

	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeUpstreamTimeout  Code = "UPSTREAM_TIMEOUT"

	CodeNotFound Code = "NOT_FOUND"
	CodeInternal Code = "INTERNAL"
)

var codeKinds = map[Code]Kind{
	CodeInvalidStake:       KindValidation,
	CodeInvalidOutcome:     KindValidation,
	CodeInvalidCode:        KindValidation,
	CodeInvalidGameType:    KindValidation,
	CodeInvalidRequest:     KindValidation,
	CodeOutcomeUnavailable: KindValidation,

	CodeDuplicateFundingTx: KindConflict,
	CodeStaleNonce:         KindConflict,
	CodeAlreadyResolved:    KindConflict,
	CodeAlreadyClaimed:     KindConflict,
	CodeRoundClosed:        KindConflict,
	CodeRoundInProgress:    KindConflict,
	CodeSelfReferral:       KindConflict,
	CodeNotFunded:          KindConflict,
	CodeBelowMinimum:       KindConflict,
	CodeWagerFailed:        KindConflict,
	CodeResultPending:      KindConflict,

	CodeStoreUnavailable: KindTransient,
	CodeUpstreamTimeout:  KindTransient,

	CodeNotFound: KindNotFound,
}

// E is the engine's error type.
type E struct {
	Code    Code
	Message string
	Cause   error
}

func (e *E) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindInternal
}

func (e *E) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *E) Unwrap() error { return e.Cause }

// Is matches on code so errors.Is(err, errs.ErrStaleNonce) holds for any
// stale-nonce error regardless of message.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidStake       = &E{Code: CodeInvalidStake}
	ErrInvalidOutcome     = &E{Code: CodeInvalidOutcome}
	ErrInvalidCode        = &E{Code: CodeInvalidCode}
	ErrInvalidGameType    = &E{Code: CodeInvalidGameType}
	ErrInvalidRequest     = &E{Code: CodeInvalidRequest}
	ErrOutcomeUnavailable = &E{Code: CodeOutcomeUnavailable}
	ErrDuplicateFundingTx = &E{Code: CodeDuplicateFundingTx}
	ErrStaleNonce         = &E{Code: CodeStaleNonce}
	ErrAlreadyResolved    = &E{Code: CodeAlreadyResolved}
	ErrAlreadyClaimed     = &E{Code: CodeAlreadyClaimed}
	ErrRoundClosed        = &E{Code: CodeRoundClosed}
	ErrRoundInProgress    = &E{Code: CodeRoundInProgress}
	ErrSelfReferral       = &E{Code: CodeSelfReferral}
	ErrNotFunded          = &E{Code: CodeNotFunded}
	ErrBelowMinimum       = &E{Code: CodeBelowMinimum}
	ErrWagerFailed        = &E{Code: CodeWagerFailed}
	ErrResultPending      = &E{Code: CodeResultPending}
	ErrStoreUnavailable   = &E{Code: CodeStoreUnavailable}
	ErrUpstreamTimeout    = &E{Code: CodeUpstreamTimeout}
	ErrNotFound           = &E{Code: CodeNotFound}
)

func New(code Code, msg string) *E {
	return &E{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *E {
	return &E{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, cause error, msg string) *E {
	return &E{Code: code, Message: msg, Cause: cause}
}

// Transient marks cause as a retryable storage failure.
func Transient(cause error, msg string) *E {
	return &E{Code: CodeStoreUnavailable, Message: msg, Cause: cause}
}

func NotFound(format string, args ...any) *E {
	return Newf(CodeNotFound, format, args...)
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost *E in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// KindOf returns the kind of the outermost *E in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}
