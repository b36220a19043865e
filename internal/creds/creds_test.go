package creds

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func testSource(secrets map[string]string, err error) *Source {
	s := NewSource("KTX", "telegram", slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.get = func(service, user string) (string, error) {
		if err != nil {
			return "", err
		}
		value, ok := secrets[service+"/"+user]
		if !ok {
			return "", keyring.ErrNotFound
		}
		return value, nil
	}
	return s
}

func TestCardComplete(t *testing.T) {
	source := testSource(map[string]string{
		"KTX/card_number":   "9430123456789012",
		"KTX/card_password": "12",
		"KTX/birthday":      "900101",
		"KTX/card_expire":   "2812",
	}, nil)

	card, ok := source.Card()

	require.True(t, ok)
	assert.Equal(t, "9430123456789012", card.Number)
	assert.Equal(t, "J", card.AuthType())
}

func TestCardMissingFieldDisablesAutoPay(t *testing.T) {
	t.Setenv("KTX_CARD_EXPIRE", "")

	source := testSource(map[string]string{
		"KTX/card_number":   "9430123456789012",
		"KTX/card_password": "12",
		"KTX/birthday":      "900101",
	}, nil)

	_, ok := source.Card()

	assert.False(t, ok)
}

func TestKeyringFailureFallsBackToEnv(t *testing.T) {
	t.Setenv("KTX_CARD_NUMBER", "9430123456789012")
	t.Setenv("KTX_CARD_PASSWORD", "12")
	t.Setenv("KTX_BIRTHDAY", " 900101 ")
	t.Setenv("KTX_CARD_EXPIRE", "2812")

	source := testSource(nil, errors.New("no secret service on this host"))

	card, ok := source.Card()

	require.True(t, ok)
	assert.Equal(t, "900101", card.Birthday, "env values are trimmed")
}

func TestEnvBacksUpMissingKeyringEntries(t *testing.T) {
	t.Setenv("KTX_TELEGRAM_CHAT_ID", "123456")

	source := testSource(map[string]string{
		"telegram/token": "8613:AAExampleToken",
	}, nil)

	cfg, ok := source.Telegram()

	require.True(t, ok)
	assert.Equal(t, "8613:AAExampleToken", cfg.Token)
	assert.Equal(t, "123456", cfg.ChatID)
}

func TestTelegramIncomplete(t *testing.T) {
	t.Setenv("KTX_TELEGRAM_CHAT_ID", "")

	source := testSource(map[string]string{"telegram/token": "8613:AAExampleToken"}, nil)

	_, ok := source.Telegram()

	assert.False(t, ok)
}
