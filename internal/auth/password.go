package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost matches the cost the legacy API hashed with.
const PasswordCost = 12

// HashPassword returns the bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// PasswordMatch is the outcome of VerifyPassword.
type PasswordMatch struct {
	OK bool
	// NeedsRehash is true when the stored value is legacy plain text and
	// should be replaced by a hash now that the password is known.
	NeedsRehash bool
}

// PasswordVerifier compares supplied passwords against stored values.
// Plain-text stored values exist only for accounts seeded before hashing
// was introduced; they are accepted while AllowLegacy is set and re-hashed
// on the first successful login.
type PasswordVerifier struct {
	AllowLegacy bool
}

// VerifyPassword compares supplied against stored.
func (v PasswordVerifier) VerifyPassword(stored, supplied string) (PasswordMatch, error) {
	if stored == "" || supplied == "" {
		return PasswordMatch{}, nil
	}
	if IsHashed(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied))
		if err == nil {
			return PasswordMatch{OK: true}, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return PasswordMatch{}, nil
		}
		return PasswordMatch{}, err
	}
	if !v.AllowLegacy {
		return PasswordMatch{}, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1 {
		return PasswordMatch{OK: true, NeedsRehash: true}, nil
	}
	return PasswordMatch{}, nil
}
