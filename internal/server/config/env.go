package config

import (
	"strings"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. SECUREPASS_ENCRYPTION_KEY.
const envPrefix = "SECUREPASS"

// parseEnv overlays values from SECUREPASS_* environment variables. Only
// variables that are set and non-empty change the config.
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	setString(&config.HTTPAddr, v.GetString("http_addr"))
	setString(&config.DatabaseDSN, v.GetString("database_dsn"))
	setString(&config.SecretKey, v.GetString("secret_key"))
	setString(&config.EncryptionKey, v.GetString("encryption_key"))
	if d := v.GetDuration("access_token_validity_duration"); d > 0 {
		config.AccessTokenValidityDuration = d
	}
	if d := v.GetDuration("refresh_token_validity_duration"); d > 0 {
		config.RefreshTokenValidityDuration = d
	}
	setString(&config.OTPBackend, v.GetString("otp_backend"))
	setString(&config.RedisAddr, v.GetString("redis_addr"))
	setString(&config.RedisPassword, v.GetString("redis_password"))
	if v.GetString("redis_db") != "" {
		config.RedisDB = v.GetInt("redis_db")
	}
	setString(&config.PasswordHasher, v.GetString("password_hasher"))
	if n := v.GetInt("bcrypt_cost"); n > 0 {
		config.BcryptCost = n
	}
	if n := v.GetInt("master_max_attempts"); n > 0 {
		config.MasterMaxAttempts = n
	}
	if d := v.GetDuration("reset_window"); d > 0 {
		config.ResetWindow = d
	}
	if s := v.GetString("cors_origins"); s != "" {
		config.CORSOrigins = splitList(s)
	}
	setString(&config.LogBackend, v.GetString("log_backend"))
	if v.GetString("development") != "" {
		config.Development = v.GetBool("development")
	}
	setString(&config.MailFrom, v.GetString("mail_from"))
	setString(&config.SMTPAddr, v.GetString("smtp_addr"))
	setString(&config.SMTPUser, v.GetString("smtp_user"))
	setString(&config.SMTPPassword, v.GetString("smtp_password"))
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
