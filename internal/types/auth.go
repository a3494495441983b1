package types

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores anything past 72 bytes
	MaxNameLength     = 100
	MaxEmailLength    = 254
)

// TokenPurpose namespaces a token so it can only be used by one workflow.
type TokenPurpose string

const (
	PurposeSession       TokenPurpose = "session"
	PurposeEmailVerify   TokenPurpose = "email-verify"
	PurposePasswordReset TokenPurpose = "password-reset"
)

// IsValid reports whether p is a known purpose.
func (p TokenPurpose) IsValid() bool {
	switch p {
	case PurposeSession, PurposeEmailVerify, PurposePasswordReset:
		return true
	default:
		return false
	}
}

// TokenSubject is the identity a token is minted for.
type TokenSubject struct {
	UserID uuid.UUID
	Role   Role // only embedded in session tokens
}

// Claims is the signed payload of every token the service issues.
type Claims struct {
	UserID  string       `json:"uid"`
	Role    Role         `json:"role,omitempty"`
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Photo is an uploaded profile image waiting to be stored.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StoredMedia is what the media gateway returns for a stored asset.
type StoredMedia struct {
	URL string
	Ref string
}

// RegisterRequest represents the registration form (JSON or multipart fields).
type RegisterRequest struct {
	Name     string `json:"name" example:"Jane Doe"`
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"secret1"`
}

func (r RegisterRequest) Validate() error {
	return NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, MaxEmailLength), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
	))
}

// LoginRequest represents the login body.
type LoginRequest struct {
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"secret1"`
}

func (r LoginRequest) Validate() error {
	return NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	))
}

// EmailRequest is used by the reset request and the verification link resend.
type EmailRequest struct {
	Email string `json:"email" example:"jane@example.com"`
}

func (r EmailRequest) Validate() error {
	return NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	))
}

// VerifyEmailRequest carries the token from the verification link.
type VerifyEmailRequest struct {
	Token string
}

func (r VerifyEmailRequest) Validate() error {
	return NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("token is required for verification")),
	))
}

// ResetPasswordRequest carries the reset token (from the path) and the new password.
type ResetPasswordRequest struct {
	Token       string `json:"-"`
	NewPassword string `json:"newPassword" example:"n3wSecret"`
}

func (r ResetPasswordRequest) Validate() error {
	return NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("token is required")),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
	))
}

// UpdateProfileRequest is the self-service patch. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" example:"Jane D."`
	Email    *string `json:"email,omitempty" example:"jane.d@example.com"`
	Password *string `json:"password,omitempty" example:"an0therSecret"`
}

func (r UpdateProfileRequest) Validate() error {
	return NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, MaxNameLength)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(3, MaxEmailLength), is.Email),
		validation.Field(&r.Password, validation.NilOrNotEmpty, validation.Length(MinPasswordLength, MaxPasswordLength)),
	))
}

// AdminUpdateUserRequest is the admin patch for an arbitrary user.
type AdminUpdateUserRequest struct {
	Name  *string `json:"name,omitempty" example:"Jane D."`
	Email *string `json:"email,omitempty" example:"jane.d@example.com"`
	Role  *Role   `json:"role,omitempty" example:"admin"`
}

func (r AdminUpdateUserRequest) Validate() error {
	return NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, MaxNameLength)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(3, MaxEmailLength), is.Email),
		validation.Field(&r.Role, validation.NilOrNotEmpty,
			validation.In(RoleUser, RoleAdmin).Error("role must be either admin or user")),
	))
}

// RegisterResult is returned by the registration workflow.
type RegisterResult struct {
	User             PublicUser
	VerificationSent bool
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  PublicUser
}

// Response is the generic success/failure envelope.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation completed"`
}

// ErrorBody documents the error envelope written by api.ErrorResponse.
type ErrorBody struct {
	Success   bool   `json:"success" example:"false"`
	Message   string `json:"message" example:"User not found"`
	RequestID string `json:"request_id,omitempty"`
}

type RegisterResponse struct {
	Success          bool       `json:"success" example:"true"`
	Message          string     `json:"message" example:"User registered. Please verify your email."`
	User             PublicUser `json:"user"`
	VerificationSent bool       `json:"verification_sent" example:"true"`
}

type LoginResponse struct {
	Success bool       `json:"success" example:"true"`
	Token   string     `json:"token" example:"eyJhbGciOiJI..."`
	User    PublicUser `json:"user"`
}

type UserResponse struct {
	Success bool       `json:"success" example:"true"`
	Message string     `json:"message,omitempty"`
	User    PublicUser `json:"user"`
}

type UsersResponse struct {
	Success bool         `json:"success" example:"true"`
	Users   []PublicUser `json:"users"`
}
