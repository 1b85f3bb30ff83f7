package models

import (
	"fmt"
	"time"
)

// Role is the part a user plays in events.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleInfluencer  Role = "influencer"
)

// Roles lists every assignable role in display order.
var Roles = []Role{RoleParticipant, RoleInfluencer}

func (r Role) String() string { return string(r) }

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleInfluencer
}

// User is the record kept for every signed-up account.
//
// Its existence for an authenticated identity decides between the returning user
// and the signup paths of the login flow.
type User struct {
	UID          string     `json:"uid" db:"uid" validate:"required"`
	DisplayName  string     `json:"displayName" db:"display_name"`
	PhotoURL     string     `json:"photoURL" db:"photo_url" validate:"omitempty,url"`
	Email        string     `json:"email" db:"email" validate:"omitempty,email"`
	Role         Role       `json:"role" db:"role" validate:"required,oneof=participant influencer"`
	CanViewList  StringList `json:"canViewList" db:"can_view_list"`
	CanAdminList StringList `json:"canAdminList" db:"can_admin_list"`
	Created      time.Time  `json:"createdAt" db:"created_at"`
	Updated      time.Time  `json:"updatedAt" db:"updated_at"`
}

// NewUser builds the record for identity signing up with form.
//
// Empty visibility and admin lists default to the user alone.
func NewUser(identity *Identity, form SignupForm) *User {
	now := time.Now().UTC()
	u := &User{
		UID:          identity.UID,
		DisplayName:  identity.DisplayName,
		PhotoURL:     identity.PhotoURL,
		Email:        identity.Email,
		Role:         form.Role,
		CanViewList:  StringList(form.CanViewList),
		CanAdminList: StringList(form.CanAdminList),
		Created:      now,
		Updated:      now,
	}
	if len(u.CanViewList) == 0 {
		u.CanViewList = StringList{identity.UID}
	}
	if len(u.CanAdminList) == 0 {
		u.CanAdminList = StringList{identity.UID}
	}
	return u
}

func (u *User) ID() string           { return u.UID }
func (u *User) CreatedAt() time.Time { return u.Created }
func (u *User) UpdatedAt() time.Time { return u.Updated }

// Validate checks required fields, the role, and the e-mail and photo URL formats.
func (u *User) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	return nil
}

// SignupForm is the role selection submitted during signup.
type SignupForm struct {
	Role         Role     `json:"role" validate:"required,oneof=participant influencer"`
	CanViewList  []string `json:"canViewList,omitempty" validate:"omitempty,dive,required"`
	CanAdminList []string `json:"canAdminList,omitempty" validate:"omitempty,dive,required"`
}

// Validate checks that the form names an assignable role.
func (f SignupForm) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid signup form: %w", err)
	}
	return nil
}
