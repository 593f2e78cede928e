package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/securepass/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-a string   HTTP bind address (e.g. ":5000")
//	-d string   database DSN, or "memory"
//	-s string   JWT HMAC secret key
//	-k string   hex vault encryption key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-o string   one-time code backend: postgres | redis
//	-R string   redis address
//	-H string   password hasher: bcrypt | argon2id
//	-l string   log backend: slog | zap
//
// Only these flags are looked at; anything else in args is ignored.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-k", "-t", "-r", "-o", "-R", "-H", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "vault encryption key (hex)")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.OTPBackend, "o", config.OTPBackend, "one-time code backend")
	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "redis address")
	fs.StringVar(&config.PasswordHasher, "H", config.PasswordHasher, "password hasher")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
}
