package gmail

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/ncastellanos/transmail/internal/classify"
)

func b64url(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestDocumentFromMessage_MultipartAlternative(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "msg-1",
		ThreadId:     "thread-1",
		InternalDate: time.Date(2026, 2, 11, 8, 30, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Bancolombia <alertas@bancolombia.com>"},
				{Name: "Subject", Value: "Alertas y Notificaciones"},
				{Name: "Date", Value: "Wed, 11 Feb 2026 08:30:00 +0000"},
			},
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "text/plain; charset=UTF-8",
					Body:     &gmailapi.MessagePartBody{Data: b64url("Compra por $45.000 en EXITO")},
				},
				{
					MimeType: "text/html",
					Body:     &gmailapi.MessagePartBody{Data: b64url("<p>Compra por $45.000</p>")},
				},
			},
		},
	}

	doc := documentFromMessage(msg)

	assert.Equal(t, "msg-1", doc.ID)
	assert.Equal(t, "thread-1", doc.ThreadID)
	assert.Equal(t, "Bancolombia <alertas@bancolombia.com>", doc.Sender)
	assert.Equal(t, "Alertas y Notificaciones", doc.Subject)
	assert.Equal(t, time.Date(2026, 2, 11, 8, 30, 0, 0, time.UTC), doc.ReceivedAt)
	assert.Equal(t, "Compra por $45.000 en EXITO", doc.PlainBody)
	assert.Equal(t, "<p>Compra por $45.000</p>", doc.HTMLBody)
}

func TestDocumentFromMessage_NestedPartsFirstMatchWins(t *testing.T) {
	// multipart/mixed wrapping multipart/alternative, plus a trailing
	// duplicate text/plain that must not overwrite the first one.
	msg := &gmailapi.Message{
		Id: "msg-2",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmailapi.MessagePart{
						{
							MimeType: "text/plain",
							Body:     &gmailapi.MessagePartBody{Data: b64url("first body")},
						},
					},
				},
				{
					MimeType: "text/plain",
					Body:     &gmailapi.MessagePartBody{Data: b64url("second body")},
				},
			},
		},
	}

	doc := documentFromMessage(msg)

	assert.Equal(t, "first body", doc.PlainBody)
	assert.Equal(t, "", doc.HTMLBody)
}

func TestDocumentFromMessage_BodyOnRootPart(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "msg-3",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "from", Value: "notificaciones@nequi.com.co"},
				{Name: "subject", Value: "Realizaste un pago"},
			},
			Body: &gmailapi.MessagePartBody{Data: b64url("Pagaste $12.500")},
		},
	}

	doc := documentFromMessage(msg)

	assert.Equal(t, "notificaciones@nequi.com.co", doc.Sender)
	assert.Equal(t, "Realizaste un pago", doc.Subject)
	assert.Equal(t, "Pagaste $12.500", doc.PlainBody)
}

func TestDocumentFromMessage_NoPayload(t *testing.T) {
	doc := documentFromMessage(&gmailapi.Message{Id: "msg-4"})

	assert.Equal(t, "msg-4", doc.ID)
	assert.True(t, doc.ReceivedAt.IsZero())
	assert.Empty(t, doc.PlainBody)
}

func TestDecodeBody_AcceptsEncodingVariants(t *testing.T) {
	plain := "señal de prueba ±100%"

	for name, encoded := range map[string]string{
		"padded url":   base64.URLEncoding.EncodeToString([]byte(plain)),
		"unpadded url": base64.RawURLEncoding.EncodeToString([]byte(plain)),
		"standard":     base64.StdEncoding.EncodeToString([]byte(plain)),
	} {
		got, err := decodeBody(encoded)
		require.NoError(t, err, name)
		assert.Equal(t, plain, got, name)
	}

	_, err := decodeBody("!!! not base64 !!!")
	assert.Error(t, err)
}

func TestNew_MissingCredentialsIsConfigurationError(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "absent.json"), "token.json")

	require.Error(t, err)
	var cerr *classify.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, classify.KindConfiguration, cerr.Kind)
	assert.False(t, cerr.Retryable())
}

func TestTokenFromFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer"}`), 0o600))

	token, err := tokenFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, "at-1", token.AccessToken)
	assert.Equal(t, "rt-1", token.RefreshToken)

	_, err = tokenFromFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
