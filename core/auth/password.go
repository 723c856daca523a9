package auth

import (
	"errors"
	"fmt"

	"FragFM/core/errs"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and checks account passwords with bcrypt at a fixed
// work factor.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher uses bcrypt.DefaultCost when cost is outside the range
// bcrypt accepts.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the work factor new hashes are made with.
func (p *PasswordHasher) Cost() int { return p.cost }

// Hash generates a bcrypt hash of the password. bcrypt only reads 72 bytes,
// so longer passwords are rejected instead of silently truncated.
func (p *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errs.Validationf("auth.Hash", "password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Check compares a password with a stored bcrypt hash.
func (p *PasswordHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
