package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates access tokens issued by the external auth provider.
// Tokens are HMAC-signed; the shared secret comes from configuration.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates a bearer token and returns the user it names.
func (v *Verifier) Verify(token string) (User, error) {
	if len(v.secret) == 0 {
		return User{}, fmt.Errorf("auth secret not configured")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return User{}, fmt.Errorf("verify token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return User{}, fmt.Errorf("verify token: missing subject")
	}
	return User{ID: c.Subject, Email: c.Email}, nil
}
