package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktxgo/ktxgo/internal/domain"
	"github.com/ktxgo/ktxgo/internal/korail"
)

type fakeClient struct {
	conf  *domain.PaymentConfirmation
	err   error
	calls int
	card  domain.CardInfo
	opts  korail.PayOptions
}

func (f *fakeClient) Pay(_ context.Context, _ *domain.Session, _ *domain.Reservation, card domain.CardInfo, opts korail.PayOptions) (*domain.PaymentConfirmation, error) {
	f.calls++
	f.card = card
	f.opts = opts
	return f.conf, f.err
}

type fakeSecrets struct {
	card domain.CardInfo
	ok   bool
}

func (f *fakeSecrets) Card() (domain.CardInfo, bool) { return f.card, f.ok }

func testCard() domain.CardInfo {
	return domain.CardInfo{Number: "9430123456789012", Password: "12", Birthday: "920101", Expire: "2812"}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPayChargesOnceWithStoredCard(t *testing.T) {
	client := &fakeClient{conf: &domain.PaymentConfirmation{Result: "SUCC", PNR: "82301234"}}
	opts := korail.PayOptions{SmartTicket: true}
	exec := NewExecutor(client, &fakeSecrets{card: testCard(), ok: true}, opts, discard())

	conf, err := exec.Pay(context.Background(), &domain.Session{Valid: true}, &domain.Reservation{PNR: "82301234"})

	require.NoError(t, err)
	assert.Equal(t, "82301234", conf.PNR)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, testCard(), client.card)
	assert.True(t, client.opts.SmartTicket)
}

func TestPayWithoutConfiguredCard(t *testing.T) {
	client := &fakeClient{}
	exec := NewExecutor(client, &fakeSecrets{}, korail.PayOptions{}, discard())

	_, err := exec.Pay(context.Background(), &domain.Session{Valid: true}, &domain.Reservation{PNR: "82301234"})

	assert.ErrorIs(t, err, ErrNoCard)
	assert.Zero(t, client.calls, "no card, no backend call")
}

func TestPayRejectionSurfacesWithoutRetry(t *testing.T) {
	client := &fakeClient{err: errors.New("pay: 한도 초과 (W0)")}
	exec := NewExecutor(client, &fakeSecrets{card: testCard(), ok: true}, korail.PayOptions{}, discard())

	_, err := exec.Pay(context.Background(), &domain.Session{Valid: true}, &domain.Reservation{PNR: "82301234"})

	require.Error(t, err)
	assert.Equal(t, 1, client.calls, "a failed charge is never retried")
}
