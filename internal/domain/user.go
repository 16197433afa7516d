package domain

import (
	"strings"
	"time"
)

// User is the identity record created by sign-up and looked up by token issuance.
// UsernameLower / EmailLower back the case-insensitive uniqueness indexes.
type User struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Username       string    `json:"username" dynamodbav:"username"`
	Email          string    `json:"email" dynamodbav:"email"`
	UsernameLower  string    `json:"-" dynamodbav:"username_lower"`
	EmailLower     string    `json:"-" dynamodbav:"email_lower"`
	Role           string    `json:"role" dynamodbav:"role"`
	FirstName      string    `json:"first_name" dynamodbav:"first_name"`
	LastName       string    `json:"last_name" dynamodbav:"last_name"`
	Bio            string    `json:"bio" dynamodbav:"bio"`
	EmailConfirmed bool      `json:"email_confirmed" dynamodbav:"email_confirmed"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

// IsAdmin reports whether the user may manage other accounts.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// SamePair reports whether u was registered with exactly this username and email,
// compared case-insensitively.
func (u *User) SamePair(username, email string) bool {
	return strings.EqualFold(u.Username, username) && strings.EqualFold(u.Email, email)
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,max=150,username,not_restricted"`
}

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	Username         string `json:"username" validate:"required,max=150,username"`
	ConfirmationCode string `json:"confirmation_code" validate:"required,numeric_code"`
}

// UpdateUserRequest is a partial profile update. Nil fields are left untouched.
type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,max=150,username,not_restricted"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

// IsEmpty reports whether no field was supplied.
func (r UpdateUserRequest) IsEmpty() bool {
	return r.Username == nil && r.Email == nil && r.FirstName == nil &&
		r.LastName == nil && r.Bio == nil && r.Role == nil
}
