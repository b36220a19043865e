// Package macro drives the search → evaluate → reserve cycle until a
// seat is booked, the attempt budget runs out, or the run is cancelled.
// One cycle performs at most one backend round trip before yielding, so
// the polling stays inside the backend's tolerance for a human-paced
// client.
package macro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ktxgo/ktxgo/internal/domain"
	"github.com/ktxgo/ktxgo/internal/korail"
)

var (
	// ErrAttemptBudget ends a bounded run that never found a seat.
	ErrAttemptBudget = errors.New("no seats found within attempt budget")

	// ErrTooManyErrors ends a run whose searches keep failing.
	ErrTooManyErrors = errors.New("too many consecutive search errors")
)

// RailClient is the slice of the booking protocol the loop drives.
type RailClient interface {
	Search(ctx context.Context, sess *domain.Session, criteria domain.SearchCriteria) ([]domain.Train, error)
	Reserve(ctx context.Context, sess *domain.Session, train domain.Train, class domain.SeatClass, passengers int, waitlist bool) (*domain.Reservation, error)
}

// Sessions is the authentication lifecycle the loop leans on. It never
// mutates the session itself.
type Sessions interface {
	EnsureAuthenticated(ctx context.Context) (*domain.Session, error)
	Invalidate()
	Reauthenticate(ctx context.Context) (*domain.Session, error)
}

// Payer settles a confirmed reservation. A payment failure never undoes
// the reservation.
type Payer interface {
	Pay(ctx context.Context, sess *domain.Session, rsv *domain.Reservation) (*domain.PaymentConfirmation, error)
}

// Notifier reports the run's terminal outcome. Best effort.
type Notifier interface {
	Notify(ctx context.Context, outcome *Outcome) error
}

type Options struct {
	Criteria   domain.SearchCriteria
	Passengers int
	AutoPay    bool
	Waitlist   bool
	// MaxAttempts bounds the number of search cycles; 0 is unbounded.
	MaxAttempts  int
	PollInterval time.Duration
	// ErrorBudget is how many consecutive failed searches are tolerated
	// before the run is declared dead.
	ErrorBudget int
}

func (o *Options) fillDefaults() {
	if o.Passengers < 1 {
		o.Passengers = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 1200 * time.Millisecond
	}
	if o.ErrorBudget <= 0 {
		o.ErrorBudget = 5
	}
}

// Outcome is everything the run achieved, for the exit code, the final
// summary and the notification.
type Outcome struct {
	RunID       string
	Final       State
	Attempts    int
	Train       *domain.Train
	Reservation *domain.Reservation
	Paid        bool
	PaymentErr  error
	NotifyErr   error
	Err         error
}

// Reserved reports whether the run ended holding a confirmed booking.
func (o *Outcome) Reserved() bool { return o.Reservation != nil }

// candidate is one reservation attempt queued within a search cycle.
type candidate struct {
	train    domain.Train
	waitlist bool
}

type Loop struct {
	rail     RailClient
	sessions Sessions
	payer    Payer
	notifier Notifier
	opts     Options
	logger   *slog.Logger

	// SelectTargets, when set, is called once with the initial search
	// result; only the returned trains are attempted for the rest of
	// the run. Nil means every returned train is a candidate.
	SelectTargets func(ctx context.Context, trains []domain.Train) ([]domain.TrainKey, error)

	// RenderCycle, when set, is called after each successful search
	// with the fresh schedule.
	RenderCycle func(attempt int, trains []domain.Train)

	sleep func(ctx context.Context, d time.Duration) error

	state   State
	outcome *Outcome
	sess    *domain.Session
	targets []domain.TrainKey
	queue   []candidate
	current candidate

	consecErrors int
	// reauthPending guards against reauth storms: a second expiry with
	// no successful backend call in between escalates instead of
	// looping through manual login forever.
	reauthPending bool
	resume        State
}

func New(rail RailClient, sessions Sessions, payer Payer, notifier Notifier, opts Options, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	opts.fillDefaults()
	return &Loop{
		rail:     rail,
		sessions: sessions,
		payer:    payer,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Run drives the state machine to a terminal state. The returned
// Outcome is non-nil even on error; err is the terminal cause, nil for
// a successful reservation.
func (l *Loop) Run(ctx context.Context) (*Outcome, error) {
	runID := uuid.NewString()
	l.logger = l.logger.With("run", runID)
	l.outcome = &Outcome{RunID: runID, Final: StateFailed}
	l.state = StateInit

	for !l.state.terminal() {
		if err := ctx.Err(); err != nil {
			// Cancellation discards partial state and skips the
			// notification; there is no outcome to report yet.
			l.outcome.Err = err
			return l.outcome, err
		}

		var next State
		var err error
		switch l.state {
		case StateInit:
			next, err = l.stepInit(ctx)
		case StateSearching:
			next, err = l.stepSearch(ctx)
		case StateCandidateSelected:
			next, err = l.stepSelect(ctx)
		case StateReserving:
			next, err = l.stepReserve(ctx)
		case StateReserved:
			next = l.stepReserved()
		case StatePaying:
			next = l.stepPay(ctx)
		case StateNotifying:
			next = l.stepNotify(ctx)
		case StateReauth:
			next, err = l.stepReauth(ctx)
		default:
			err = fmt.Errorf("macro loop reached unknown state %v", l.state)
		}
		if err != nil {
			if ctx.Err() != nil {
				l.outcome.Err = ctx.Err()
				return l.outcome, ctx.Err()
			}
			return l.fail(ctx, err)
		}
		l.state = next
	}

	l.outcome.Final = l.state
	return l.outcome, l.outcome.Err
}

// fail records the terminal cause and still runs the notification step:
// a failed run is an outcome worth reporting.
func (l *Loop) fail(ctx context.Context, cause error) (*Outcome, error) {
	l.logger.Error("run failed", "state", l.state.String(), "error", cause)
	l.outcome.Err = cause
	l.outcome.Final = StateFailed
	l.state = StateFailed
	l.stepNotify(ctx)
	return l.outcome, cause
}

func (l *Loop) stepInit(ctx context.Context) (State, error) {
	if err := l.opts.Criteria.Validate(); err != nil {
		return StateFailed, fmt.Errorf("invalid search criteria: %w", err)
	}

	sess, err := l.sessions.EnsureAuthenticated(ctx)
	if err != nil {
		return StateFailed, err
	}
	l.sess = sess
	l.logger.Info("run starting", "criteria", l.opts.Criteria.Summary())

	if l.SelectTargets != nil {
		if err := l.selectTargets(ctx); err != nil {
			return StateFailed, err
		}
	}
	return StateSearching, nil
}

// selectTargets performs the one-time interactive train confirmation.
// The selection is fixed for the run; an expiry during the initial
// search is recovered once.
func (l *Loop) selectTargets(ctx context.Context) error {
	reauthed := false
	for {
		trains, err := l.rail.Search(ctx, l.sess, l.opts.Criteria)
		if err != nil {
			if errors.Is(err, korail.ErrSessionExpired) && !reauthed {
				l.logger.Warn("session expired before selection, re-authenticating")
				if l.sess, err = l.sessions.Reauthenticate(ctx); err != nil {
					return err
				}
				reauthed = true
				continue
			}
			if errors.Is(err, korail.ErrNoResults) {
				trains = nil
			} else {
				return fmt.Errorf("initial search: %w", err)
			}
		}

		targets, err := l.SelectTargets(ctx, trains)
		if err != nil {
			return err
		}
		l.targets = targets
		return nil
	}
}

func (l *Loop) stepSearch(ctx context.Context) (State, error) {
	if l.opts.MaxAttempts > 0 && l.outcome.Attempts >= l.opts.MaxAttempts {
		return StateFailed, ErrAttemptBudget
	}
	l.outcome.Attempts++

	trains, err := l.rail.Search(ctx, l.sess, l.opts.Criteria)
	if err != nil {
		switch {
		case errors.Is(err, korail.ErrSessionExpired):
			l.sessions.Invalidate()
			l.resume = StateSearching
			return StateReauth, nil
		case errors.Is(err, korail.ErrNoResults):
			trains = nil
		default:
			l.consecErrors++
			l.logger.Warn("search failed", "attempt", l.outcome.Attempts, "consecutive", l.consecErrors, "error", err)
			if l.consecErrors >= l.opts.ErrorBudget {
				return StateFailed, fmt.Errorf("%w: %w", ErrTooManyErrors, err)
			}
			if err := l.sleep(ctx, 2*l.opts.PollInterval); err != nil {
				return StateFailed, err
			}
			return StateSearching, nil
		}
	}
	l.consecErrors = 0
	l.reauthPending = false

	if l.RenderCycle != nil {
		l.RenderCycle(l.outcome.Attempts, trains)
	}

	l.queue = l.buildQueue(trains)
	return StateCandidateSelected, nil
}

// buildQueue orders this cycle's reservation attempts: every eligible
// train with a seat in the requested class, in schedule order, then
// (when enabled) waitlist attempts for trains with a joinable list.
// Nothing from past cycles is carried over.
func (l *Loop) buildQueue(trains []domain.Train) []candidate {
	eligible := trains
	if l.targets != nil {
		byKey := make(map[domain.TrainKey]domain.Train, len(trains))
		for _, train := range trains {
			byKey[train.Key()] = train
		}
		eligible = eligible[:0:0]
		missing := 0
		for _, key := range l.targets {
			train, ok := byKey[key]
			if !ok {
				missing++
				continue
			}
			eligible = append(eligible, train)
		}
		if missing > 0 {
			l.logger.Debug("selected trains not in this result", "missing", missing, "selected", len(l.targets))
		}
	}

	var queue []candidate
	for _, train := range eligible {
		if train.SeatAvailableFor(l.opts.Criteria.SeatClass) {
			queue = append(queue, candidate{train: train})
		}
	}
	if l.opts.Waitlist {
		for _, train := range eligible {
			if !train.SeatAvailableFor(l.opts.Criteria.SeatClass) && train.HasWaitingList() {
				queue = append(queue, candidate{train: train, waitlist: true})
			}
		}
	}
	return queue
}

func (l *Loop) stepSelect(ctx context.Context) (State, error) {
	if len(l.queue) == 0 {
		if l.opts.MaxAttempts > 0 && l.outcome.Attempts >= l.opts.MaxAttempts {
			return StateFailed, ErrAttemptBudget
		}
		if err := l.sleep(ctx, l.opts.PollInterval); err != nil {
			return StateFailed, err
		}
		return StateSearching, nil
	}
	l.current = l.queue[0]
	l.queue = l.queue[1:]
	return StateReserving, nil
}

func (l *Loop) stepReserve(ctx context.Context) (State, error) {
	if l.outcome.Reservation != nil {
		// A confirmed reservation is never re-attempted.
		return StateFailed, fmt.Errorf("reservation already confirmed, refusing a second attempt")
	}

	train := l.current.train
	class := train.ReserveClass(l.opts.Criteria.SeatClass)
	l.logger.Info("seat found, reserving", "train", train.Brief(), "class", class, "waitlist", l.current.waitlist)

	rsv, err := l.rail.Reserve(ctx, l.sess, train, class, l.opts.Passengers, l.current.waitlist)
	if err != nil {
		switch {
		case errors.Is(err, korail.ErrSessionExpired):
			l.sessions.Invalidate()
			l.resume = StateSearching
			return StateReauth, nil
		case errors.Is(err, korail.ErrSeatUnavailable), errors.Is(err, korail.ErrRejected):
			// Gone or refused: try the next candidate this cycle.
			l.logger.Info("reserve attempt failed", "train", train.TrainNo, "error", err)
			return StateCandidateSelected, nil
		case korail.IsTransient(err):
			// The request may have landed server-side. Confirm through
			// a fresh search before any further reservation attempt.
			l.logger.Warn("network fault during reserve, re-searching before any retry", "error", err)
			l.queue = nil
			if err := l.sleep(ctx, l.opts.PollInterval); err != nil {
				return StateFailed, err
			}
			return StateSearching, nil
		default:
			return StateFailed, err
		}
	}

	l.reauthPending = false
	l.outcome.Reservation = rsv
	l.outcome.Train = &train
	return StateReserved, nil
}

func (l *Loop) stepReserved() State {
	rsv := l.outcome.Reservation
	l.logger.Info("reservation confirmed", "pnr", rsv.PNR, "train", rsv.TrainNo, "amount", rsv.Amount, "waitlist", rsv.Waitlisted)
	l.outcome.Final = StateDone
	if l.opts.AutoPay && l.payer != nil {
		return StatePaying
	}
	return StateNotifying
}

func (l *Loop) stepPay(ctx context.Context) State {
	conf, err := l.payer.Pay(ctx, l.sess, l.outcome.Reservation)
	if err != nil {
		// The reservation stands; payment failure is reported, never
		// rolled back and never retried.
		l.logger.Warn("payment not completed, reservation is kept", "error", err)
		l.outcome.PaymentErr = err
		return StateNotifying
	}
	l.logger.Info("payment confirmed", "pnr", conf.PNR, "result", conf.Result)
	l.outcome.Paid = true
	return StateNotifying
}

func (l *Loop) stepNotify(ctx context.Context) State {
	if l.notifier != nil {
		if err := l.notifier.Notify(ctx, l.outcome); err != nil {
			l.logger.Warn("notification failed", "error", err)
			l.outcome.NotifyErr = err
		}
	}
	return l.outcome.Final
}

func (l *Loop) stepReauth(ctx context.Context) (State, error) {
	if l.reauthPending {
		return StateFailed, fmt.Errorf("session expired again immediately after re-authentication")
	}
	l.logger.Warn("session expired, re-authenticating")
	sess, err := l.sessions.Reauthenticate(ctx)
	if err != nil {
		return StateFailed, err
	}
	l.sess = sess
	l.reauthPending = true
	return l.resume, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
