package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-electives-api/pkg/config"
)

func TestComposeMultipart(t *testing.T) {
	raw, err := Compose("coordinacion@colegiotgs.cl", Message{
		To:      "francisca.perez@estudiantes.colegiotgs.cl",
		Subject: "Confirmación de Inscripción de Electivos 2026",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "To: francisca.perez@estudiantes.colegiotgs.cl\r\n")
	assert.Contains(t, out, "=?utf-8?q?")
	assert.Contains(t, out, "multipart/alternative")
	assert.True(t, strings.Index(out, "plain body") < strings.Index(out, "<p>html body</p>"))
}

func TestComposeRejectsBadRecipient(t *testing.T) {
	_, err := Compose("a@b.cl", Message{To: "not an address"})
	assert.Error(t, err)
}

func TestSendDisabledWithoutHost(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{})
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.Send(context.Background(), Message{To: "a@b.cl"}), ErrDisabled)
}
