// Package utils provides shared utility helpers used across the wallet and
// indexer backend.
package utils

import (
	"errors"
	"fmt"
)

// Wrap adds context to an error message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Kind is one of the exhaustive error categories every fallible operation in
// the wallet/indexer core returns. Callers test for a kind with errors.Is
// against a NewKind(k, "") target (see NewKind below), not by string-matching
// the wrapped message chain Wrap builds.
type Kind int

const (
	// InvalidArgument: malformed input, wrong-length key, unknown version byte.
	InvalidArgument Kind = iota
	// IntegrityFailure: MAC mismatch, merkle mismatch, base58 checksum
	// mismatch, Easy16 unrecoverable checksum error.
	IntegrityFailure
	// NotFound: missing asset, missing wallet header, missing file.
	NotFound
	// PermissionDenied: passphrase failure, auth-peer rejection, handshake
	// state violation.
	PermissionDenied
	// Conflict: second writer on a locked subspace, address-type policy
	// mismatch, duplicate asset id.
	Conflict
	// ResourceExhausted: backup repair found multiple candidates, KDF memory
	// request over cap.
	ResourceExhausted
	// Unsupported: unknown on-disk version number. Never silently upgraded.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case IntegrityFailure:
		return "integrity_failure"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case Conflict:
		return "conflict"
	case ResourceExhausted:
		return "resource_exhausted"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// KindError binds a Kind sentinel to a descriptive message. errors.Is matches
// on Kind equality so callers can branch on category without string
// comparison, while Error() still carries the human-readable detail.
type KindError struct {
	Kind Kind
	Msg  string
}

func (e *KindError) Error() string { return e.Kind.String() + ": " + e.Msg }

// Is implements the errors.Is protocol: a *KindError matches a bare Kind
// value (via NewKind(k, "")) or another *KindError with the same Kind.
func (e *KindError) Is(target error) bool {
	var ke *KindError
	if errors.As(target, &ke) {
		return ke.Kind == e.Kind
	}
	return false
}

// NewKind constructs a *KindError; use as the errors.Is target, e.g.
// errors.Is(err, utils.NewKind(utils.NotFound, "")).
func NewKind(k Kind, msg string) error {
	return &KindError{Kind: k, Msg: msg}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting of the context message.
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
