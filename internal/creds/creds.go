// Package creds resolves stored secrets: the payment card and the
// notification bot identity. Secrets live in the OS keyring; environment
// variables stand in on machines without a secret service. A missing
// secret disables its feature and is never an error.
package creds

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/ktxgo/ktxgo/internal/domain"
)

// Env fallbacks, matching the keyring field names.
const (
	envCardNumber   = "KTX_CARD_NUMBER"
	envCardPassword = "KTX_CARD_PASSWORD"
	envBirthday     = "KTX_BIRTHDAY"
	envCardExpire   = "KTX_CARD_EXPIRE"
	envBotToken     = "KTX_TELEGRAM_TOKEN"
	envBotChatID    = "KTX_TELEGRAM_CHAT_ID"
)

// TelegramConfig identifies the bot and the chat to notify.
type TelegramConfig struct {
	Token  string
	ChatID string
}

func (t TelegramConfig) Complete() bool {
	return t.Token != "" && t.ChatID != ""
}

type Source struct {
	cardService     string
	telegramService string
	logger          *slog.Logger

	get      func(service, user string) (string, error)
	warnOnce sync.Once
}

func NewSource(cardService, telegramService string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cardService:     cardService,
		telegramService: telegramService,
		logger:          logger,
		get:             keyring.Get,
	}
}

// Card returns the stored payment card. ok is false when any field is
// missing, which callers report as "auto-pay not configured".
func (s *Source) Card() (domain.CardInfo, bool) {
	card := domain.CardInfo{
		Number:   s.lookup(s.cardService, "card_number", envCardNumber),
		Password: s.lookup(s.cardService, "card_password", envCardPassword),
		Birthday: s.lookup(s.cardService, "birthday", envBirthday),
		Expire:   s.lookup(s.cardService, "card_expire", envCardExpire),
	}
	return card, card.Complete()
}

// Telegram returns the notification bot identity, loaded only when a
// caller actually asks for it.
func (s *Source) Telegram() (TelegramConfig, bool) {
	cfg := TelegramConfig{
		Token:  s.lookup(s.telegramService, "token", envBotToken),
		ChatID: s.lookup(s.telegramService, "chat_id", envBotChatID),
	}
	return cfg, cfg.Complete()
}

// lookup tries the keyring first, then the environment. Backend failures
// other than "not found" are warned about once and degrade to the env
// path instead of crashing the run.
func (s *Source) lookup(service, key, envKey string) string {
	value, err := s.get(service, key)
	if err == nil {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	} else if !errors.Is(err, keyring.ErrNotFound) {
		s.warnOnce.Do(func() {
			s.logger.Warn("keyring unavailable, falling back to environment", "error", err)
		})
	}
	return strings.TrimSpace(os.Getenv(envKey))
}
