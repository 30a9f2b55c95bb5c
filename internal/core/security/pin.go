package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadPassword = errors.New("password must be at least 8 characters")
	ErrBadPIN      = errors.New("PIN must be 4 to 6 digits")
)

// HashPassword bcrypt-hashes a login password.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrBadPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPIN bcrypt-hashes a transaction PIN after validating its shape.
func HashPIN(pin string) (string, error) {
	if !ValidPIN(pin) {
		return "", ErrBadPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPIN reports whether the PIN matches the stored hash.
func CheckPIN(pin, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// ValidPIN accepts 4 to 6 ASCII digits, nothing else.
func ValidPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
