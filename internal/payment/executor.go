// Package payment settles a confirmed reservation with the stored card.
// Exactly one charge attempt per run: an ambiguous failure could mean a
// completed charge, so nothing here ever retries.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ktxgo/ktxgo/internal/domain"
	"github.com/ktxgo/ktxgo/internal/korail"
)

// ErrNoCard means the credential source has no complete card configured.
// Auto-pay is reported as skipped, not failed.
var ErrNoCard = errors.New("payment card not configured")

// Client is the payment slice of the rail protocol.
type Client interface {
	Pay(ctx context.Context, sess *domain.Session, rsv *domain.Reservation, card domain.CardInfo, opts korail.PayOptions) (*domain.PaymentConfirmation, error)
}

// Secrets supplies the stored card on demand.
type Secrets interface {
	Card() (domain.CardInfo, bool)
}

type Executor struct {
	client  Client
	secrets Secrets
	opts    korail.PayOptions
	logger  *slog.Logger
}

func NewExecutor(client Client, secrets Secrets, opts korail.PayOptions, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{client: client, secrets: secrets, opts: opts, logger: logger}
}

// Pay charges the reservation once. The card is loaded for this call
// only and never logged beyond its last four digits.
func (e *Executor) Pay(ctx context.Context, sess *domain.Session, rsv *domain.Reservation) (*domain.PaymentConfirmation, error) {
	card, ok := e.secrets.Card()
	if !ok {
		return nil, ErrNoCard
	}

	e.logger.Info("paying reservation", "pnr", rsv.PNR, "card", card.MaskedNumber())
	conf, err := e.client.Pay(ctx, sess, rsv, card, e.opts)
	if err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	return conf, nil
}
