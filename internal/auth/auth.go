package auth

import (
	"time"

	"github.com/frahmantamala/kakeibo/internal/session"
	"golang.org/x/crypto/bcrypt"
)

// Credential is the single login account. Only the bcrypt hash of the
// password is ever stored.
type Credential struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// StatusResponse is the public view of the caller's session.
type StatusResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user"`
}

type LoginUser struct {
	Username string `json:"username"`
}

type LoginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    LoginUser `json:"user"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
