package service

import "errors"

var (
	// ErrUnsupportedProvider means the requested provider id is not in the
	// registry.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrInvalidState means the OAuth state parameter failed verification:
	// bad signature, expired, or bound to a different user.
	ErrInvalidState = errors.New("invalid or expired state parameter")

	// ErrStateReplayed means a state token passed verification but its
	// nonce was already consumed by an earlier callback.
	ErrStateReplayed = errors.New("state parameter already used")
)
