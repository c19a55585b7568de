package platform

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CheckToken inspects the credential locally before any network call.
//
// The platform issues JWT session tokens; parsing the claims without
// verifying the signature is enough to catch an already-expired token
// and fail fast instead of burning a request on a guaranteed 401.
// Signature validity is still the platform's job.
//
// Returns:
//   - nil if the token parses and has not expired
//   - ErrTokenMalformed if the token is not a JWT
//   - ErrTokenExpired if the embedded expiry has passed
func CheckToken(token string, now time.Time) error {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if exp == nil {
		// Tokens without an expiry claim are accepted as-is.
		return nil
	}
	if now.After(exp.Time) {
		return fmt.Errorf("%w: expired at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return nil
}
