package mailer

import (
	"context"

	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/models"
)

// LogSender writes codes to the log instead of mailing them. Development only.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{log: l.With("module", "mailer")}
}

func (s *LogSender) Send(ctx context.Context, email, code string, purpose models.Purpose) error {
	s.log.Info(ctx, "verification code", "email", email, "purpose", string(purpose), "code", code)
	return nil
}
