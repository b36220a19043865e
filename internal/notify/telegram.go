// Package notify delivers the run's outcome to a Telegram chat. It is
// best effort: a failed or unconfigured notification never affects the
// run's result.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/ktxgo/ktxgo/internal/creds"
	"github.com/ktxgo/ktxgo/internal/domain"
	"github.com/ktxgo/ktxgo/internal/macro"
)

// ErrNotConfigured means the bot token or chat id is missing from the
// credential source.
var ErrNotConfigured = errors.New("telegram not configured")

// Secrets supplies the bot identity, loaded only when a notification is
// actually about to be sent.
type Secrets interface {
	Telegram() (creds.TelegramConfig, bool)
}

type Notifier struct {
	secrets Secrets
	timeout time.Duration
	logger  *slog.Logger

	send func(ctx context.Context, cfg creds.TelegramConfig, text string) error
}

func NewNotifier(secrets Secrets, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		secrets: secrets,
		timeout: timeout,
		logger:  logger,
		send:    sendTelegram,
	}
}

// Notify sends one message describing the outcome. The send is bounded
// by the notifier's timeout so it can never stall the run's exit.
func (n *Notifier) Notify(ctx context.Context, outcome *macro.Outcome) error {
	cfg, ok := n.secrets.Telegram()
	if !ok {
		n.logger.Info("telegram skipped: token/chat_id not configured")
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.send(ctx, cfg, Message(outcome)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	n.logger.Info("telegram notification sent")
	return nil
}

func sendTelegram(ctx context.Context, cfg creds.TelegramConfig, text string) error {
	b, err := bot.New(cfg.Token)
	if err != nil {
		return err
	}
	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: cfg.ChatID,
		Text:   text,
	})
	return err
}

// Message renders the outcome in the notification format: status line,
// train, route, departure, PNR.
func Message(outcome *macro.Outcome) string {
	var lines []string

	switch {
	case outcome.Reserved() && outcome.Paid:
		lines = append(lines, "[KTXgo] 예약+결제 완료")
	case outcome.Reserved():
		lines = append(lines, "[KTXgo] 예약 완료 (미결제)")
	default:
		lines = append(lines, "[KTXgo] 예약 실패")
	}

	if rsv := outcome.Reservation; rsv != nil {
		lines = append(lines,
			strings.TrimSpace(rsv.TrainType+" "+rsv.TrainNo),
			fmt.Sprintf("%s → %s", rsv.Departure, rsv.Arrival),
			fmt.Sprintf("%s %s", domain.FormatDate(rsv.DepDate), domain.FormatTime(rsv.DepTime)),
			"PNR: "+rsv.PNR,
		)
		if outcome.PaymentErr != nil {
			lines = append(lines, "결제 실패: 기한 내 직접 결제 필요")
		}
	} else {
		lines = append(lines, fmt.Sprintf("시도 %d회, 좌석을 확보하지 못했습니다.", outcome.Attempts))
		if outcome.Err != nil {
			lines = append(lines, outcome.Err.Error())
		}
	}
	return strings.Join(lines, "\n")
}
