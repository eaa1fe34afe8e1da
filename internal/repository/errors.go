// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist (or is
// no longer live, e.g. a revoked session).  Handlers translate it into
// an HTTP 404 or an authentication failure depending on the resource.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of
// conflicting state.  Handlers should translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrEmailExists and ErrPhoneExists report a unique-key collision on
// the users table.
var (
	ErrEmailExists = errors.New("email already exists")
	ErrPhoneExists = errors.New("phone already exists")
)

// ErrAlreadyDecided is returned when approving or rejecting a payment
// request that is no longer PENDING.
var ErrAlreadyDecided = errors.New("payment request already decided")

// ErrPendingExists is returned when a shop already has a PENDING
// payment request.
var ErrPendingExists = errors.New("pending payment request exists")

// ErrInvalidBillingCycle is returned for a write naming an unknown
// billing cycle.
var ErrInvalidBillingCycle = errors.New("invalid billing cycle")
