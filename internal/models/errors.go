package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before any work begins.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a source that does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// CollaboratorError wraps a failure of an external capability such as the
// tagger, tokenizer, embedder, vector database or language model.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// SourceNotFound is a shorthand for a missing source.
func SourceNotFound(id string) error {
	return &NotFoundError{Kind: "source", ID: id}
}

// Collaborator wraps err as a CollaboratorError. A nil err stays nil, and an
// error that is already a CollaboratorError is returned unchanged.
func Collaborator(name, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Collaborator: name, Op: op, Err: err}
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsCollaborator reports whether err originates in an external collaborator.
func IsCollaborator(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
