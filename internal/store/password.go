package store

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns a password into its stored form and checks a
// candidate against a stored value.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(stored, password string) bool
}

// PlainPasswords stores passwords as given.
type PlainPasswords struct{}

func (PlainPasswords) Hash(password string) (string, error) {
	return password, nil
}

// Verify matches the stored text first, so plaintext that merely looks
// like a bcrypt hash still works; hashes left by bcrypt mode are checked after.
func (PlainPasswords) Verify(stored, password string) bool {
	if equalConstantTime(stored, password) {
		return true
	}
	return isBcryptHash(stored) && bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// BcryptPasswords stores bcrypt hashes. Records written before hashing was
// enabled still verify against their plaintext.
type BcryptPasswords struct {
	Cost int
}

func (b BcryptPasswords) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify checks real bcrypt hashes with bcrypt only; any other stored
// value is a plaintext record.
func (BcryptPasswords) Verify(stored, password string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return equalConstantTime(stored, password)
}

// NewPasswordHasher returns the hasher for a config mode ("plain" or "bcrypt").
func NewPasswordHasher(mode string) (PasswordHasher, error) {
	switch mode {
	case "", "plain":
		return PlainPasswords{}, nil
	case "bcrypt":
		return BcryptPasswords{}, nil
	default:
		return nil, fmt.Errorf("unknown password hashing mode %q", mode)
	}
}

// isBcryptHash reports whether s parses as a bcrypt hash, not just whether
// it carries the prefix.
func isBcryptHash(s string) bool {
	if !strings.HasPrefix(s, "$2a$") && !strings.HasPrefix(s, "$2b$") && !strings.HasPrefix(s, "$2y$") {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

func equalConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
