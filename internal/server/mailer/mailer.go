// Package mailer delivers one-time codes to users.
package mailer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

// Sender delivers code for purpose to email. It does not retry; a returned
// error means the user never got the code.
type Sender interface {
	Send(ctx context.Context, email, code string, purpose models.Purpose) error
}

func subject(p models.Purpose) string {
	switch p {
	case models.PurposeRegistration:
		return "SecurePass - Email Verification"
	case models.PurposePasswordReset:
		return "SecurePass - Password Reset"
	default:
		return "SecurePass - Login Verification"
	}
}

func action(p models.Purpose) string {
	switch p {
	case models.PurposeRegistration:
		return "complete your registration"
	case models.PurposePasswordReset:
		return "reset your password"
	default:
		return "finish signing in"
	}
}

func body(code string, p models.Purpose, validMinutes int) string {
	return fmt.Sprintf("Your SecurePass verification code is %s.\r\n\r\n"+
		"Enter it to %s. The code expires in %d minutes.\r\n\r\n"+
		"If you did not request this, ignore this email.\r\n",
		code, action(p), validMinutes)
}

// ValidMinutes is the lifetime quoted in the message for a purpose.
func ValidMinutes(p models.Purpose) int {
	if p == models.PurposeTwoFactor {
		return 5
	}
	return 10
}
