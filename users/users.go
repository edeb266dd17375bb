package users

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `json:"id,omitempty" yaml:"id"`                   // Unique identifier for the user
	Username     string    `json:"username,omitempty" yaml:"username"`       // Unique username, the subject bound to authorization codes
	PasswordHash string    `json:"-" yaml:"password_hash"`                   // bcrypt hash of the user's password - never serialize
	FullName     string    `json:"full_name,omitempty" yaml:"full_name"`     // Display name
	Email        string    `json:"email,omitempty" yaml:"email"`             // User's email address
	DateJoined   time.Time `json:"date_joined,omitempty" yaml:"date_joined"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty" yaml:"-"`            // Last time the user logged in
	Blocked      bool      `json:"blocked,omitempty" yaml:"blocked"`         // Blocked, has the user been blocked from logging in
}

// HashCost is the bcrypt cost used for new hashes; tests lower it
var HashCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("[HashPassword] %w", err)
	}
	return string(bytes), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
