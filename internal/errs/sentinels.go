// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across gateway/service layers.
var (
	// ErrConnectionDenied indicates the identity provider refused access.
	ErrConnectionDenied = errors.New("connection denied")

	// ErrProviderUnavailable indicates no compatible identity provider was found.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrContractUnavailable indicates no contract deployment on the detected network.
	ErrContractUnavailable = errors.New("contract unavailable")

	// ErrRoleResolution indicates a role lookup failed before completion.
	ErrRoleResolution = errors.New("role resolution failed")

	// ErrNotRegistered is the defined signal for an account with no patient
	// registration. It is not a failure condition.
	ErrNotRegistered = errors.New("not registered")

	// ErrUnauthorized indicates the caller lacks the capability for an action.
	// Advisory only: enforcement is the contract's responsibility.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAssistantUnavailable indicates the inference endpoint failed or timed out.
	ErrAssistantUnavailable = errors.New("assistant unavailable")

	// ErrBusy indicates an assistant exchange is already in flight.
	ErrBusy = errors.New("busy")

	// ErrEmptyPrompt indicates a submit with no prompt text; nothing is sent.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrNoContent indicates the patient flow was invoked without resolved content.
	ErrNoContent = errors.New("no content resolved")
)
