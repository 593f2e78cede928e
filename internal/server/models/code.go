package models

import "time"

// Purpose is the flow a one-time code belongs to. Each purpose has its own
// record, TTL and state per email.
type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
	PurposeTwoFactor     Purpose = "two_factor"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposePasswordReset, PurposeTwoFactor:
		return true
	}
	return false
}

// CodeState is the stored state of a one-time code. Expiry is not stored:
// it is derived from ExpiresAt when the record is read.
type CodeState string

const (
	CodePending  CodeState = "pending"
	CodeVerified CodeState = "verified"
	CodeConsumed CodeState = "consumed"
	CodeExpired  CodeState = "expired"
)

// StagedAccount is the registration data held back until the code is
// verified. Secrets are already hashed.
type StagedAccount struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	LoginHash  string `json:"loginHash"`
	MasterHash string `json:"masterHash"`
}

// OneTimeCode is the single record kept per (Email, Purpose). Issuing a new
// code replaces it, and the new ID makes stale conditional updates miss.
type OneTimeCode struct {
	ID         string
	Email      string
	Purpose    Purpose
	Code       string
	State      CodeState
	Attempts   int
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	Staged     *StagedAccount
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StateAt reports the effective state at now. A pending code past its
// expiry is Expired; verified and consumed records keep their state.
func (c *OneTimeCode) StateAt(now time.Time) CodeState {
	if c.State == CodePending && !now.Before(c.ExpiresAt) {
		return CodeExpired
	}
	return c.State
}
