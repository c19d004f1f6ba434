package domain

import "time"

type AliasType string

const (
	AliasEmail  AliasType = "email"
	AliasMobile AliasType = "mobile"
)

func (a AliasType) Valid() bool {
	return a == AliasEmail || a == AliasMobile
}

type TokenPurpose string

const (
	PurposeAuth   TokenPurpose = "auth"
	PurposeVerify TokenPurpose = "verify"
)

// CallbackToken is a one-time code bound to a user's contact point. The
// alias value is snapshotted at issue time; tokens are deactivated on use
// or expiry, never deleted inline.
type CallbackToken struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Key       string       `json:"key"`
	AliasType AliasType    `json:"alias_type"`
	Alias     string       `json:"alias"`
	Purpose   TokenPurpose `json:"purpose"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}
