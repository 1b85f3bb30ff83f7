package models

import (
	"fmt"
	"time"
)

// Identity is a principal authenticated by the identity provider.
//
// IDToken is the provider-signed bearer token presented to the session and user APIs.
// AccessToken authorizes calls to the YouTube Data API on the user's behalf.
type Identity struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	PhotoURL    string    `json:"photoURL"`
	IDToken     string    `json:"-"`
	AccessToken string    `json:"-"`
	Expiry      time.Time `json:"-"`
}

// String omits the tokens so identities are safe to log.
func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s <%s>", i.UID, i.Email)
}
