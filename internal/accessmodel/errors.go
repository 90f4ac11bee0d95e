/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package accessmodel defines the shared data model for the JIT access
// engine: users, projects, role bindings, eligibilities, activation
// requests, and the error taxonomy every component returns through.
package accessmodel

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures per the error taxonomy. Error kinds
// are values, not types: every fallible operation returns a plain *Error
// rather than a distinct Go type per failure mode.
type ErrorKind string

const (
	// NotAuthenticated means the upstream identity-aware proxy did not
	// attach a verified caller identity. The core never raises this
	// itself; it is reserved for the REST façade that composes the core.
	NotAuthenticated ErrorKind = "not_authenticated"

	// AccessDenied means the caller is ineligible, not a listed reviewer,
	// or the justification failed the configured policy.
	AccessDenied ErrorKind = "access_denied"

	// NotFound means the referenced resource (project, request, token) is
	// absent.
	NotFound ErrorKind = "not_found"

	// AlreadyExists means a binding with identical (member, role,
	// condition) is already present. approve() treats this as success
	// when it results from a concurrent-approval race.
	AlreadyExists ErrorKind = "already_exists"

	// InvalidArgument means an out-of-range duration, reviewer count,
	// batch size, or a start time that is too far in the past.
	InvalidArgument ErrorKind = "invalid_argument"

	// Conflict means the provisioner exhausted its etag-retry budget.
	Conflict ErrorKind = "conflict"

	// TokenInvalid means signature mismatch, wrong algorithm,
	// issuer/audience mismatch, or an expired token.
	TokenInvalid ErrorKind = "token_invalid"

	// Transient means a transport-level error; the caller may retry.
	Transient ErrorKind = "transient"
)

// Error is the engine's single error type. Kind carries the taxonomy,
// Message is the human-readable detail, and Role optionally names the
// offending role binding without leaking other users' eligibility data
// (spec §7, "User-visible behavior").
type Error struct {
	Kind    ErrorKind
	Message string
	Role    string
}

func (e *Error) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("%s: %s (role=%s)", e.Kind, e.Message, e.Role)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is(err, ErrKind) style comparisons against a sentinel
// constructed with the same Kind (other fields are ignored).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with the given kind and formatted message.
func New(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewWithRole builds an *Error that also carries the offending role name.
func NewWithRole(kind ErrorKind, role, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Role: role}
}

// KindOf extracts the ErrorKind from err, or "" if err is nil or not an
// *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// sentinel returns a zero-message *Error of the given kind, suitable as a
// comparison target for errors.Is.
func sentinel(kind ErrorKind) *Error { return &Error{Kind: kind} }

// Sentinels for errors.Is comparisons, e.g. errors.Is(err, accessmodel.ErrAlreadyExists).
var (
	ErrNotAuthenticated = sentinel(NotAuthenticated)
	ErrAccessDenied     = sentinel(AccessDenied)
	ErrNotFound         = sentinel(NotFound)
	ErrAlreadyExists    = sentinel(AlreadyExists)
	ErrInvalidArgument  = sentinel(InvalidArgument)
	ErrConflict         = sentinel(Conflict)
	ErrTokenInvalid     = sentinel(TokenInvalid)
	ErrTransient        = sentinel(Transient)
)
