package auth

import (
	"errors"
	"fmt"

	"vendorse/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type Passwords struct {
	cost int
}

func NewPasswords(cost int) Passwords {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Passwords{cost: cost}
}

func (p Passwords) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth.Passwords.Hash: %w", err)
	}
	return string(hash), nil
}

// Compare returns models.ErrInvalidCredentials when password does not match hash.
func (p Passwords) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrHashTooShort) {
		return models.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("auth.Passwords.Compare: %w", err)
	}
	return nil
}
