package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClauseFailed is the sentinel every Failure matches with errors.Is.
var ErrClauseFailed = errors.New("clause failed")

// Failure is the failure signal of a clause body.
//
// It marks an expected, local failure of one clause path. Only the
// resolvers interpret it; it never escapes a resolve call.
type Failure struct {
	Message string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Message == "" {
		return ErrClauseFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrClauseFailed, f.Message)
}

// Is makes errors.Is(err, ErrClauseFailed) true for any Failure.
func (f *Failure) Is(target error) bool {
	return target == ErrClauseFailed
}

// Fail returns a Failure. Bodies return it to abandon the current clause.
//
//	if n < 0 {
//	    return engine.Fail("negative input")
//	}
func Fail(message ...string) error {
	return &Failure{Message: strings.Join(message, " ")}
}

// Check returns a Failure iff cond is false, nil otherwise.
//
//	if err := engine.Check(n%2 == 0, "odd"); err != nil {
//	    return err
//	}
func Check(cond bool, message ...string) error {
	if cond {
		return nil
	}
	return Fail(message...)
}

// IsFailure reports whether err is (or wraps) a failure signal.
func IsFailure(err error) bool {
	return errors.Is(err, ErrClauseFailed)
}

// UnexpectedBodyError classifies any non-failure error raised by a clause
// body, including recovered panics. The resolvers treat it like a Failure.
type UnexpectedBodyError struct {
	Predicate string
	Clause    int
	Err       error
}

// Error implements the error interface.
func (e *UnexpectedBodyError) Error() string {
	return fmt.Sprintf("unexpected error in clause %d of %q: %v", e.Clause, e.Predicate, e.Err)
}

// Unwrap returns the underlying error.
func (e *UnexpectedBodyError) Unwrap() error {
	return e.Err
}

// RegistryErrorCode categorizes configuration errors.
type RegistryErrorCode string

const (
	// ErrCodeUnknownPredicate indicates a lookup of a name with no clauses.
	ErrCodeUnknownPredicate RegistryErrorCode = "UNKNOWN_PREDICATE"

	// ErrCodeKindConflict indicates a name already bound to another kind.
	ErrCodeKindConflict RegistryErrorCode = "KIND_CONFLICT"

	// ErrCodeInvalidClause indicates a clause whose body does not fit its kind.
	ErrCodeInvalidClause RegistryErrorCode = "INVALID_CLAUSE"

	// ErrCodeRegistryFrozen indicates a Register call after Freeze.
	ErrCodeRegistryFrozen RegistryErrorCode = "REGISTRY_FROZEN"
)

// RegistryError is a configuration error. Resolve calls return it as-is;
// it is never caught internally.
type RegistryError struct {
	Code RegistryErrorCode

	// Name is the predicate name involved.
	Name string

	// Kind is the kind that was requested.
	Kind Kind

	// Existing is the kind the name is already bound to (KindConflict only).
	Existing Kind

	Message string
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	switch e.Code {
	case ErrCodeKindConflict:
		return fmt.Sprintf("%s: predicate %q is registered as %s, cannot register as %s",
			e.Code, e.Name, e.Existing, e.Kind)
	case ErrCodeUnknownPredicate:
		return fmt.Sprintf("%s: no %s clauses registered for %q", e.Code, e.Kind, e.Name)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (predicate=%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s (predicate=%s)", e.Code, e.Name)
}

// IsUnknownPredicate returns true if err is an UNKNOWN_PREDICATE error.
// Uses errors.As to handle wrapped errors.
func IsUnknownPredicate(err error) bool {
	return hasRegistryCode(err, ErrCodeUnknownPredicate)
}

// IsKindConflict returns true if err is a KIND_CONFLICT error.
// Uses errors.As to handle wrapped errors.
func IsKindConflict(err error) bool {
	return hasRegistryCode(err, ErrCodeKindConflict)
}

// IsInvalidClause returns true if err is an INVALID_CLAUSE error.
func IsInvalidClause(err error) bool {
	return hasRegistryCode(err, ErrCodeInvalidClause)
}

// IsRegistryFrozen returns true if err is a REGISTRY_FROZEN error.
func IsRegistryFrozen(err error) bool {
	return hasRegistryCode(err, ErrCodeRegistryFrozen)
}

func hasRegistryCode(err error, code RegistryErrorCode) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// ErrorCode returns the registry error code of err, or "" if err is not a
// RegistryError.
func ErrorCode(err error) string {
	var re *RegistryError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ""
}
