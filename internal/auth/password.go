package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the cost the hosted deployment has always used.
// Raising it invalidates nothing but slows signin on small instances.
const bcryptCost = 10

// HashPassword derives a bcrypt hash for storage. Empty passwords are
// rejected here so the storage layer never sees one.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. It never returns
// an error: a malformed hash is simply a failed verification.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
