package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeCollectionNotFound indicates a lookup of a collection that
	// does not exist.
	ErrCodeCollectionNotFound ErrorCode = "COLLECTION_NOT_FOUND"

	// ErrCodeCollectionExists indicates a create with a name already in use.
	ErrCodeCollectionExists ErrorCode = "COLLECTION_EXISTS"

	// ErrCodeViewNotFound indicates a lookup of a view that does not exist.
	ErrCodeViewNotFound ErrorCode = "VIEW_NOT_FOUND"

	// ErrCodeViewExists indicates a view create with a name already in use.
	ErrCodeViewExists ErrorCode = "VIEW_EXISTS"

	// ErrCodeRecordNotFound indicates a primary key with no record.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// ErrCodeInvalidName indicates a collection or view name outside the
	// allowed character set or length bounds.
	ErrCodeInvalidName ErrorCode = "INVALID_NAME"
)

// StoreError represents a store-level failure with a stable code.
// These are deterministic caller-input errors, never retried.
type StoreError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Name is the collection, view, or primary key at fault.
	Name string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound returns true for collection, view, or record not-found
// errors. Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		switch se.Code {
		case ErrCodeCollectionNotFound, ErrCodeViewNotFound, ErrCodeRecordNotFound:
			return true
		}
	}
	return false
}

// IsAlreadyExists returns true for collection or view name conflicts.
func IsAlreadyExists(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == ErrCodeCollectionExists || se.Code == ErrCodeViewExists
	}
	return false
}

// IsInvalidName returns true if the error is a name validation failure.
func IsInvalidName(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidName
	}
	return false
}

func errCollectionNotFound(name string) *StoreError {
	return &StoreError{
		Code:    ErrCodeCollectionNotFound,
		Name:    name,
		Message: "collection not found",
	}
}

func errCollectionExists(name string) *StoreError {
	return &StoreError{
		Code:    ErrCodeCollectionExists,
		Name:    name,
		Message: "collection already exists",
	}
}

func errViewNotFound(name string) *StoreError {
	return &StoreError{
		Code:    ErrCodeViewNotFound,
		Name:    name,
		Message: "view not found",
	}
}

func errViewExists(name string) *StoreError {
	return &StoreError{
		Code:    ErrCodeViewExists,
		Name:    name,
		Message: "view already exists",
	}
}

func errRecordNotFound(pk string) *StoreError {
	return &StoreError{
		Code:    ErrCodeRecordNotFound,
		Name:    pk,
		Message: "record not found",
	}
}
