package airdrop

import (
	"errors"
	"fmt"
)

// InvalidIdentifierError is returned when an external identifier cannot be
// encoded into a key: wrong length, bad checksum, out-of-range tag bits and
// similar defects of the input.
type InvalidIdentifierError struct {
	Identifier string
	error
}

func NewInvalidIdentifierErrorf(identifier string, msg string, args ...interface{}) error {
	return InvalidIdentifierError{
		Identifier: identifier,
		error:      fmt.Errorf(msg, args...),
	}
}

func (e InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %v", e.Identifier, e.error)
}

func (e InvalidIdentifierError) Unwrap() error {
	return e.error
}

// IsInvalidIdentifierError returns whether the given error is an InvalidIdentifierError error
func IsInvalidIdentifierError(err error) bool {
	var errInvalidIdentifier InvalidIdentifierError
	return errors.As(err, &errInvalidIdentifier)
}

// DuplicateKeyError is returned by the trie builder when two entries carry the
// same key. The builder never keeps one of them silently.
type DuplicateKeyError struct {
	Key Key
}

func NewDuplicateKeyError(key Key) error {
	return DuplicateKeyError{Key: key}
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %s", e.Key)
}

// IsDuplicateKeyError returns whether the given error is a DuplicateKeyError error
func IsDuplicateKeyError(err error) bool {
	var errDuplicateKey DuplicateKeyError
	return errors.As(err, &errDuplicateKey)
}

// MalformedInputError is returned when a serialized trie or blob is truncated
// or structurally inconsistent.
type MalformedInputError struct {
	error
}

func NewMalformedInputErrorf(msg string, args ...interface{}) error {
	return MalformedInputError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e MalformedInputError) Error() string {
	return "malformed input: " + e.error.Error()
}

func (e MalformedInputError) Unwrap() error {
	return e.error
}

// IsMalformedInputError returns whether the given error is a MalformedInputError error
func IsMalformedInputError(err error) bool {
	var errMalformedInput MalformedInputError
	return errors.As(err, &errMalformedInput)
}

// InvalidGrantError is returned when a grant violates its invariants
// (negative or missing amount, empty claim window).
type InvalidGrantError struct {
	error
}

func NewInvalidGrantErrorf(msg string, args ...interface{}) error {
	return InvalidGrantError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e InvalidGrantError) Unwrap() error {
	return e.error
}

// IsInvalidGrantError returns whether the given error is an InvalidGrantError error
func IsInvalidGrantError(err error) bool {
	var errInvalidGrant InvalidGrantError
	return errors.As(err, &errInvalidGrant)
}
