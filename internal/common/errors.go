package common

import "errors"

// Business logic errors
var (
	// ErrNotFound: the referenced message, file reference or user does
	// not exist. Deletes and downloads report it without mutating state.
	ErrNotFound = errors.New("resource not found")

	// ErrGone: a stored file reference exists but the bytes are missing.
	// Deliberately distinct from ErrNotFound.
	ErrGone = errors.New("file content gone")

	// ErrPersistence: the durable write could not be committed. Aborts
	// the delivery attempt and is surfaced to the sending client.
	ErrPersistence = errors.New("persistence failure")

	// ErrTransport: the live send to a peer connection failed. Drives
	// the notification fallback; never fatal to the connection handler.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol: a frame broke the file-transfer frame sequence.
	ErrProtocol = errors.New("protocol violation")

	// ErrUserNotFound: the username is unknown to the user directory.
	ErrUserNotFound = errors.New("user not found")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)
