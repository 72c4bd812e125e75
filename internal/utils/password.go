package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// dummy is compared against when no account matches a login attempt so
// both failure paths cost one bcrypt comparison.
var dummy struct {
	once sync.Once
	hash []byte
}

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// BurnPasswordCheck performs a bcrypt comparison that always fails, at the
// given cost.
func BurnPasswordCheck(plain string, cost int) {
	dummy.once.Do(func() {
		dummy.hash, _ = bcrypt.GenerateFromPassword([]byte("no-such-account"), cost)
	})
	_ = bcrypt.CompareHashAndPassword(dummy.hash, []byte(plain))
}
