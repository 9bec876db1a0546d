package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor for every stored credential.
const Cost = 10

var (
	ErrInvalidHash     = errors.New("invalid hash format")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Hash generates a salted bcrypt digest of the password
func Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(digest), nil
}

// Verify checks if the password matches the digest.
// A mismatch is reported as (false, nil); a digest that cannot be parsed is an error.
func Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
}

// HashCost reports the work factor a digest was produced with.
func HashCost(digest string) (int, error) {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return cost, nil
}
