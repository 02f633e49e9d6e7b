package auth

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// DummyHash is compared against when a login names an unknown user, so
// both failure paths spend the same bcrypt time.
var DummyHash = mustHash("neurallog-dummy-password", bcrypt.MinCost)

// HashPassword returns a salted bcrypt hash of password. cost is clamped to
// bcrypt's allowed range. Passwords of any length are accepted.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	b, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPasswordHash reports whether password matches hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}

// bcryptInput passes short passwords through unchanged. Longer ones are
// reduced to the base64 of their sha256 so every byte counts.
func bcryptInput(password string) []byte {
	if len(password) <= maxPasswordBytes {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func mustHash(password string, cost int) string {
	h, err := HashPassword(password, cost)
	if err != nil {
		panic(err)
	}
	return h
}
