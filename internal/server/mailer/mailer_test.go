package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSMTPSender_BuildsMessage(t *testing.T) {
	s := NewSMTPSender("smtp.example.com:587", "no-reply@example.com", "user", "pw")

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg, gotAuth = addr, to, string(msg), a
		return nil
	}

	require.NoError(t, s.Send(context.Background(), "a@x.com", "482913", models.PurposePasswordReset))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.NotNil(t, gotAuth)
	assert.Contains(t, gotMsg, "Subject: SecurePass - Password Reset\r\n")
	assert.Contains(t, gotMsg, "482913")
	assert.Contains(t, gotMsg, "expires in 10 minutes")
}

func TestSMTPSender_NoAuthWithoutUser(t *testing.T) {
	s := NewSMTPSender("localhost:25", "f@x.com", "", "")
	s.send = func(_ string, a smtp.Auth, _ string, _ []string, msg []byte) error {
		assert.Nil(t, a)
		assert.Contains(t, string(msg), "expires in 5 minutes")
		return nil
	}
	require.NoError(t, s.Send(context.Background(), "a@x.com", "1", models.PurposeTwoFactor))
}

func TestSMTPSender_FailureIsDeliveryError(t *testing.T) {
	s := NewSMTPSender("localhost:25", "f@x.com", "", "")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	err := s.Send(context.Background(), "a@x.com", "1", models.PurposeRegistration)
	assert.ErrorIs(t, err, common.ErrDelivery)
}

func TestSMTPSender_ContextCancelled(t *testing.T) {
	s := NewSMTPSender("localhost:25", "f@x.com", "", "")
	block := make(chan struct{})
	defer close(block)
	s.send = func(string, smtp.Auth, string, []string, []byte) error { <-block; return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "a@x.com", "1", models.PurposeRegistration), common.ErrDelivery)
}

func TestSMTPSender_RejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender("localhost:25", "f@x.com", "", "")
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not send")
		return nil
	}
	err := s.Send(context.Background(), "a@x.com\r\nBcc: b@x.com", "1", models.PurposeRegistration)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSender(logging.WrapZap(zap.New(core)))

	require.NoError(t, s.Send(context.Background(), "a@x.com", "482913", models.PurposeRegistration))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.True(t, strings.Contains(entry.Message, "verification code"))
	assert.Equal(t, "482913", entry.ContextMap()["code"])
	assert.Equal(t, "mailer", entry.ContextMap()["module"])
}
