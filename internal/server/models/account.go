package models

import "time"

// Account is a registered user. LoginHash and MasterHash are independent
// salted hashes; neither can be derived from the other.
type Account struct {
	ID        string
	Email     string
	FirstName string
	LastName  string

	LoginHash  string
	MasterHash string

	EmailVerified    bool
	TwoFactorEnabled bool

	MasterFailedAttempts int
	LastMasterAttempt    *time.Time
	LastLogin            *time.Time

	Settings AccountSettings

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountSettings are user preferences with no security meaning.
type AccountSettings struct {
	EmailNotifications bool `json:"emailNotifications"`
	SecurityAlerts     bool `json:"securityAlerts"`
	AutoLogoutMinutes  int  `json:"autoLogout"`
}

// DefaultAccountSettings is what a fresh account starts with.
func DefaultAccountSettings() AccountSettings {
	return AccountSettings{EmailNotifications: true, SecurityAlerts: true, AutoLogoutMinutes: 15}
}
