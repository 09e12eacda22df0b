// Package services defines the business logic for identity resolution.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer. Storage failures are not wrapped into sentinels: the underlying
// driver error propagates unchanged so callers see exactly what failed.
package services

import "errors"

var (
	// ErrNoIdentifier is returned when a resolve request carries neither an
	// email address nor a phone number.
	ErrNoIdentifier = errors.New("email or phone is required")

	// ErrContactNotFound indicates that a referenced contact row does not
	// exist (e.g., a secondary whose primary has vanished mid-request).
	ErrContactNotFound = errors.New("contact not found")
)
