// Package testhelpers provides utilities for testing datatram-go components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"time"
)

// GenerateTestJWT creates a session token with a valid structure but no
// signature (alg: none). The client never verifies signatures, so this is
// enough to exercise claim extraction and bearer propagation.
func GenerateTestJWT(sub, email string) string {
	return GenerateTestJWTWithExpiry(sub, email, time.Time{})
}

// GenerateTestJWTWithExpiry is GenerateTestJWT with an exp claim.
// A zero expiry omits the claim.
func GenerateTestJWTWithExpiry(sub, email string, expiry time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	if !expiry.IsZero() {
		payload += fmt.Sprintf(`,"exp":%d`, expiry.Unix())
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for
// Authorization headers.
func GenerateTestJWTWithBearer(sub, email string) string {
	return "Bearer " + GenerateTestJWT(sub, email)
}
