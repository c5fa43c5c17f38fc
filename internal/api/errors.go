// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/migration"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/validation"
)

// Error codes carried in APIError.Code.
const (
	codeValidation       = "VALIDATION_ERROR"
	codeAuthentication   = "AUTHENTICATION_ERROR"
	codeOwnership        = "OWNERSHIP_DENIED"
	codeNotFound         = "NOT_FOUND"
	codeConflict         = "CONFLICT"
	codeRemoteDown       = "REMOTE_UNAVAILABLE"
	codeInternal         = "INTERNAL_ERROR"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeRateLimited      = "RATE_LIMIT_EXCEEDED"
)

// ErrMalformedBody is returned when a request body is not valid JSON.
var ErrMalformedBody = errors.New("malformed request body")

// classifyError maps an error from the service layer to a status, code and
// client-safe message.
func classifyError(err error) (int, string, string) {
	var reqErr *validation.RequestValidationError
	var fieldErr *models.ValidationError

	switch {
	case errors.As(err, &reqErr), errors.As(err, &fieldErr):
		return http.StatusBadRequest, codeValidation, err.Error()
	case errors.Is(err, models.ErrValidationFailed), errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, codeValidation, err.Error()
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrBearerDisabled):
		return http.StatusUnauthorized, codeAuthentication, "Invalid or unsupported bearer token"
	case errors.Is(err, models.ErrAnonymousIdentity):
		return http.StatusForbidden, codeOwnership, "A signed-in account is required"
	case errors.Is(err, models.ErrOwnershipDenied):
		return http.StatusForbidden, codeOwnership, "Not allowed to modify this playlist"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "Not found"
	case errors.Is(err, migration.ErrAlreadyRunning):
		return http.StatusConflict, codeConflict, "A migration is already running"
	case errors.Is(err, models.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable, codeRemoteDown, "The shared collection is unreachable"
	default:
		return http.StatusInternalServerError, codeInternal, "Internal server error"
	}
}
