package domain

import (
	"fmt"
	"time"

	"github.com/diagnosis/passwordless-api/internal/utils"
)

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Mobile         string    `json:"mobile"`
	EmailVerified  bool      `json:"email_verified"`
	MobileVerified bool      `json:"mobile_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type UserInfo struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Mobile         string `json:"mobile"`
	EmailVerified  bool   `json:"email_verified"`
	MobileVerified bool   `json:"mobile_verified"`
}

func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:             u.ID,
		Email:          u.Email,
		Mobile:         u.Mobile,
		EmailVerified:  u.EmailVerified,
		MobileVerified: u.MobileVerified,
	}
}

// EmailTokenRequest asks for a sign-in code sent to an email address.
type EmailTokenRequest struct {
	Email        string `json:"email"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func (r *EmailTokenRequest) Normalize() {
	r.Email = utils.NormalizeEmail(r.Email)
}

func (r *EmailTokenRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !utils.IsValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// MobileTokenRequest asks for a sign-in code sent to a mobile number.
type MobileTokenRequest struct {
	Mobile       string `json:"mobile"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func (r *MobileTokenRequest) Normalize() {
	r.Mobile = utils.NormalizeMobile(r.Mobile)
}

func (r *MobileTokenRequest) Validate() error {
	if r.Mobile == "" {
		return fmt.Errorf("mobile is required")
	}
	if !utils.IsValidMobile(r.Mobile) {
		return fmt.Errorf("invalid mobile format")
	}
	return nil
}

// ExchangeRequest trades a callback token for a session token. Exactly one
// alias identifies the sign-in channel.
type ExchangeRequest struct {
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
	Token  string `json:"token"`
}

func (r *ExchangeRequest) Normalize() {
	r.Email = utils.NormalizeEmail(r.Email)
	r.Mobile = utils.NormalizeMobile(r.Mobile)
}

func (r *ExchangeRequest) Validate() error {
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	if r.Email != "" && r.Mobile != "" {
		return fmt.Errorf("provide either email or mobile, not both")
	}
	if r.Email != "" && !utils.IsValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Mobile != "" && !utils.IsValidMobile(r.Mobile) {
		return fmt.Errorf("invalid mobile format")
	}
	return nil
}

// VerifyRequest submits a verification code for the authenticated user.
type VerifyRequest struct {
	Token string `json:"token"`
}

func (r *VerifyRequest) Validate() error {
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

type SessionResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *UserInfo `json:"user"`
}
