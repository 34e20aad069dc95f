package auth

import (
	"encoding/json"
	"errors"

	"github.com/fernet/fernet-go"

	"biosys/config"
)

// This type accepts a valid access token in exchange for a user record.
// Tokens are fernet messages whose payload is the user record as JSON,
// signed with one of the configured keys. With no keys configured the
// authenticator is open: every request maps to an anonymous user.
type Authenticator struct {
	keys []*fernet.Key
}

func NewAuthenticator() (*Authenticator, error) {
	var a Authenticator
	if len(config.Auth.Keys) > 0 {
		keys, err := fernet.DecodeKeys(config.Auth.Keys...)
		if err != nil {
			return nil, err
		}
		a.keys = keys
	}
	return &a, nil
}

// given an access token, returns a User or an error
func (a *Authenticator) GetUser(accessToken string) (User, error) {
	if len(a.keys) == 0 {
		return User{Name: "anonymous"}, nil
	}
	payload := fernet.VerifyAndDecrypt([]byte(accessToken), 0, a.keys)
	if payload == nil {
		return User{}, errors.New("Invalid access token!")
	}
	var user User
	if err := json.Unmarshal(payload, &user); err != nil {
		return User{}, errors.New("Invalid access token!")
	}
	return user, nil
}
