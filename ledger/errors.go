/*
errors.go - Centralized error taxonomy for the wallet ledger.

PURPOSE:
  All error kinds in one place so the boundary adapter can map them to
  HTTP status codes without inspecting store-specific error types.

USAGE:
  Repositories and the engine return *Error (or wrap one). Callers use
  errors.As to recover the Kind and status mapping:

    var lerr *ledger.Error
    if errors.As(err, &lerr) {
        writeError(w, lerr.Kind.HTTPStatus(), lerr.Message, lerr)
    }

SEE ALSO:
  - store.go: repository interfaces whose implementations return
    ErrIntegrityViolation and ErrNotFound (defined below)
  - engine (package): raises these kinds per the movement protocol
*/
package ledger

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error kinds the engine is allowed to raise.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindAssetUnknown        Kind = "AssetUnknown"
	KindSystemWalletMissing Kind = "SystemWalletMissing"
	KindInsufficientFunds   Kind = "InsufficientFunds"
	KindWalletNotFound      Kind = "WalletNotFound"
	KindDuplicateTransaction Kind = "DuplicateTransaction"
	KindStoreError          Kind = "StoreError"
	KindInternal            Kind = "Internal"
)

// HTTPStatus is the boundary status mapping from spec §7.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAssetUnknown, KindSystemWalletMissing, KindInsufficientFunds:
		return http.StatusBadRequest
	case KindWalletNotFound:
		return http.StatusNotFound
	case KindDuplicateTransaction:
		return http.StatusConflict
	case KindStoreError, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a Kind and a human message through the engine to the
// boundary. A wrapped cause is kept for logging: Error() appends it,
// while the boundary reports only Kind and Message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is(err, target) true when target is an *Error of the
// same Kind, whatever its message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// =============================================================================
// STORE-LEVEL SENTINELS
// =============================================================================

// ErrIntegrityViolation is returned by store implementations when a
// unique or check constraint rejects a write (duplicate idempotency
// key, duplicate transaction id, duplicate wallet, balance check).
// The engine catches this specifically to run the idempotency-race
// recovery path (protocol step 8).
var ErrIntegrityViolation = errors.New("integrity constraint violation")

// ErrNotFound is returned by repository lookups that find no row,
// distinct from an engine-level KindWalletNotFound (which also carries
// boundary context).
var ErrNotFound = errors.New("not found")

// IsIntegrityViolation reports whether err (or anything it wraps) is
// an integrity violation raised by the store.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrIntegrityViolation)
}
