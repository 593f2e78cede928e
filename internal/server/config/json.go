package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/securepass/internal/flagx"
	"github.com/dmitrijs2005/securepass/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "10m" strings and integer nanoseconds. Absent keys leave the current
// value untouched.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	EncryptionKey                string         `json:"encryption_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	OTPBackend                   string         `json:"otp_backend"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RedisDB                      *int           `json:"redis_db"`
	PasswordHasher               string         `json:"password_hasher"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	MasterMaxAttempts            int            `json:"master_max_attempts"`
	ResetWindow                  timex.Duration `json:"reset_window"`
	CORSOrigins                  []string       `json:"cors_origins"`
	LogBackend                   string         `json:"log_backend"`
	Development                  *bool          `json:"development"`
	MailFrom                     string         `json:"mail_from"`
	SMTPAddr                     string         `json:"smtp_addr"`
	SMTPUser                     string         `json:"smtp_user"`
	SMTPPassword                 string         `json:"smtp_password"`
}

// parseJson overlays the file named by -c/-config. A missing flag is a
// no-op; an unreadable or invalid file panics, as startup cannot continue.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.EncryptionKey, c.EncryptionKey)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	setString(&config.OTPBackend, c.OTPBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.PasswordHasher, c.PasswordHasher)
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.MasterMaxAttempts > 0 {
		config.MasterMaxAttempts = c.MasterMaxAttempts
	}
	if c.ResetWindow.Duration > 0 {
		config.ResetWindow = c.ResetWindow.Duration
	}
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	setString(&config.LogBackend, c.LogBackend)
	if c.Development != nil {
		config.Development = *c.Development
	}
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.SMTPAddr, c.SMTPAddr)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
