package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender submits plain-text mail through an SMTP relay. PLAIN auth is
// used when a user is configured.
type SMTPSender struct {
	addr     string
	from     string
	user     string
	password string
	send     sendFunc
}

func NewSMTPSender(addr, from, user, password string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from, user: user, password: password, send: smtp.SendMail}
}

func (s *SMTPSender) message(to, code string, purpose models.Purpose) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject(purpose))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body(code, purpose, ValidMinutes(purpose)))
	return []byte(b.String())
}

func (s *SMTPSender) Send(ctx context.Context, email, code string, purpose models.Purpose) error {
	if strings.ContainsAny(email, "\r\n") {
		return common.Validationf("invalid email address")
	}

	var auth smtp.Auth
	if s.user != "" {
		host, _, err := net.SplitHostPort(s.addr)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrDelivery, err)
		}
		auth = smtp.PlainAuth("", s.user, s.password, host)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.send(s.addr, auth, s.from, []string{email}, s.message(email, code, purpose))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrDelivery, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", common.ErrDelivery, ctx.Err())
	}
}
