// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every tier. Callers branch with errors.Is.
var (
	// ErrRemoteUnavailable means the remote tier is not configured, not
	// reachable, or its circuit is open. Never retried inline.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrRemoteRejected means the remote tier refused a write.
	ErrRemoteRejected = errors.New("remote store rejected write")

	// ErrNotFound means neither tier has the record.
	ErrNotFound = errors.New("shared playlist not found")

	// ErrOwnershipDenied means the acting identity may not perform the operation.
	ErrOwnershipDenied = errors.New("ownership denied")

	// ErrValidationFailed means the input was malformed.
	ErrValidationFailed = errors.New("validation failed")

	// ErrAnonymousIdentity is returned when an operation needs a signed-in,
	// non-anonymous account.
	ErrAnonymousIdentity = fmt.Errorf("%w: a signed-in account is required", ErrOwnershipDenied)
)

// ValidationError describes a single invalid field. It matches
// ErrValidationFailed under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
