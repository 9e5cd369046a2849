package auth

import "github.com/frahmantamala/kakeibo/internal"

// LoginDTO is the body of POST /api/auth/login. There is one account, so
// only the password is sent.
type LoginDTO struct {
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	if d.Password == "" {
		return internal.ErrPasswordRequired
	}
	return nil
}
