package platform

import "errors"

// Domain errors for platform operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnauthorized is returned when the platform rejects the credential.
	// Callers must not retry: the token needs to be refreshed or replaced.
	ErrUnauthorized = errors.New("platform: unauthorized")

	// ErrTokenExpired is returned when the credential's embedded expiry
	// has already passed.
	ErrTokenExpired = errors.New("platform: token expired")

	// ErrTokenMalformed is returned when the credential cannot be parsed
	// as a JWT.
	ErrTokenMalformed = errors.New("platform: token malformed")

	// ErrDeviceNotResponding is returned when a command could not be
	// delivered within the configured attempt budget.
	ErrDeviceNotResponding = errors.New("platform: device not responding")

	// ErrRequestFailed is returned when the platform answers with an
	// unexpected status code.
	ErrRequestFailed = errors.New("platform: request failed")

	// ErrInvalidResponse is returned when a platform response body cannot
	// be decoded.
	ErrInvalidResponse = errors.New("platform: invalid response")

	// ErrNoDevices is returned when device discovery finds nothing to
	// manage.
	ErrNoDevices = errors.New("platform: no devices found")
)
