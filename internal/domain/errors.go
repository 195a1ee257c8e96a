// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity already exists and cannot be replaced.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the input failed validation. Wrap it with the
// field-level detail: fmt.Errorf("%w: domain is required", domain.ErrValidation).
var ErrValidation = errors.New("validation failed")
