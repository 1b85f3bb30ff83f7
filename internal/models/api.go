package models

import (
	"fmt"
	"time"
)

// Envelope wraps every JSON response of the gateway API.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok wraps data in a successful envelope.
func Ok[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

// SessionRequest exchanges a provider id token for a session cookie.
type SessionRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// Session describes an active gateway session.
type Session struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChannelLinkRequest links a fetched channel to the user identified by UID.
type ChannelLinkRequest struct {
	UID     string   `json:"uid" validate:"required"`
	DocData *Channel `json:"docData" validate:"required"`
}

// Validate checks the request shape and that the channel belongs to UID. A channel without an owner is
// assigned to UID.
func (r ChannelLinkRequest) Validate() error {
	if r.DocData != nil && r.DocData.UID == "" {
		r.DocData.UID = r.UID
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid channel link: %w", err)
	}
	if r.DocData.UID != r.UID {
		return fmt.Errorf("invalid channel link: channel owner %q does not match %q", r.DocData.UID, r.UID)
	}
	return nil
}

// ValidateStruct validates v against its `validate` tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}
