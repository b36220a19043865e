// Command ktxgo reserves KTX seats: it polls the schedule for the
// requested route until a seat opens, books it, and optionally pays and
// sends a Telegram notification. Subcommands `reservations` and
// `tickets` list the account's current bookings and issued tickets.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/ktxgo/ktxgo/config"
	"github.com/ktxgo/ktxgo/internal/browser"
	"github.com/ktxgo/ktxgo/internal/creds"
	"github.com/ktxgo/ktxgo/internal/domain"
	"github.com/ktxgo/ktxgo/internal/korail"
	"github.com/ktxgo/ktxgo/internal/macro"
	"github.com/ktxgo/ktxgo/internal/notify"
	"github.com/ktxgo/ktxgo/internal/payment"
	"github.com/ktxgo/ktxgo/internal/session"
	"github.com/ktxgo/ktxgo/internal/store"
	"github.com/ktxgo/ktxgo/internal/tui"
)

const version = "1.2.0"

// Exit codes reported to the caller.
const (
	exitReserved    = 0
	exitFailed      = 1
	exitAuthFailed  = 2
	exitPaymentFail = 3
	exitCancelled   = 130
)

type options struct {
	departure   string
	arrival     string
	date        string
	hour        string
	seat        string
	headless    bool
	interactive bool
	maxAttempts int
	passengers  int
	autoPay     bool
	telegram    bool
	waitlist    bool
	configPath  string
	debug       bool
	showVersion bool
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	opts := parseFlags()
	if opts.showVersion {
		fmt.Println("ktxgo " + version)
		return 0
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionStore := store.New(cfg.Session.DataDir)
	bridge := browser.New(browser.Options{
		StatePath:  sessionStore.Path(),
		Locale:     cfg.Browser.Locale,
		NavTimeout: float64(cfg.Browser.NavTimeoutMS),
	}, logger)
	defer bridge.Close()

	client := korail.NewClient(bridge, logger)
	manager := session.NewManager(bridge, client, sessionStore, session.Options{
		Headless:      opts.headless,
		LoginTimeout:  cfg.Session.LoginTimeout(),
		StableChecks:  cfg.Session.ProbeStableChecks,
		ProbeInterval: cfg.Session.ProbeInterval(),
		PollInterval:  cfg.Session.LoginPollInterval(),
	}, logger)

	switch flag.Arg(0) {
	case "reservations":
		return listReservations(ctx, manager, client, logger)
	case "tickets":
		return listTickets(ctx, manager, client, logger)
	case "":
		return runMacro(ctx, opts, cfg, manager, client, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected none, reservations or tickets)\n", flag.Arg(0))
		return exitFailed
	}
}

func parseFlags() *options {
	opts := &options{}
	now := time.Now()

	flag.StringVar(&opts.departure, "departure", domain.DefaultDeparture, "departure station")
	flag.StringVar(&opts.arrival, "arrival", domain.DefaultArrival, "arrival station")
	flag.StringVar(&opts.date, "date", domain.DefaultTravelDate(now), "travel date, YYYYMMDD")
	flag.StringVar(&opts.hour, "time", domain.DefaultTravelHour(now), "earliest departure hour, HH")
	flag.StringVar(&opts.seat, "seat", string(domain.SeatAny), "seat class: general, special, any, standing")
	flag.BoolVar(&opts.headless, "headless", true, "run the browser headless after login")
	flag.BoolVar(&opts.interactive, "interactive", false, "prompt for conditions and target trains (default: on for a TTY)")
	flag.IntVar(&opts.maxAttempts, "max-attempts", 0, "search cycles before giving up, 0 means unbounded")
	flag.IntVar(&opts.passengers, "passengers", 1, "number of adult passengers")
	flag.BoolVar(&opts.autoPay, "auto-pay", false, "pay with the stored card after reserving")
	flag.BoolVar(&opts.telegram, "telegram", false, "send a Telegram notification on the final outcome")
	flag.BoolVar(&opts.waitlist, "waitlist", false, "join the waiting list when no seat is open")
	flag.StringVar(&opts.configPath, "config", defaultConfigPath(), "config file path")
	flag.BoolVar(&opts.debug, "debug", false, "verbose logging")
	flag.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flag.Parse()

	if !flag.CommandLine.Changed("interactive") {
		opts.interactive = tui.IsTTY()
	}
	return opts
}

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yaml"
}

func runMacro(ctx context.Context, opts *options, cfg *config.Config, manager *session.Manager, client *korail.Client, logger *slog.Logger) int {
	criteria := domain.SearchCriteria{
		Departure:  opts.departure,
		Arrival:    opts.arrival,
		Date:       opts.date,
		Hour:       domain.NormalizeHour(opts.hour),
		SeatClass:  domain.SeatClass(opts.seat),
		Passengers: opts.passengers,
	}

	if opts.interactive {
		if !tui.IsTTY() {
			fmt.Fprintln(os.Stderr, "--interactive requires a TTY")
			return exitFailed
		}
		var err error
		criteria, err = promptConditions(criteria)
		if err != nil {
			if errors.Is(err, tui.ErrCancelled) {
				return exitCancelled
			}
			fmt.Fprintln(os.Stderr, err)
			return exitFailed
		}
	}
	if err := criteria.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	secrets := creds.NewSource(cfg.Keyring.CardService, cfg.Keyring.TelegramService, logger)

	var payer macro.Payer
	if opts.autoPay {
		payer = payment.NewExecutor(client, secrets, korail.PayOptions{
			SmartTicket: cfg.Payment.SmartTicket,
			Installment: cfg.Payment.InstallmentMonths,
		}, logger)
	}
	var notifier macro.Notifier
	if opts.telegram {
		notifier = notify.NewNotifier(secrets, cfg.Notify.SendTimeout(), logger)
	}

	loop := macro.New(client, manager, payer, notifier, macro.Options{
		Criteria:     criteria,
		Passengers:   opts.passengers,
		AutoPay:      opts.autoPay,
		Waitlist:     opts.waitlist,
		MaxAttempts:  opts.maxAttempts,
		PollInterval: cfg.Search.PollInterval(),
		ErrorBudget:  cfg.Search.MaxConsecutiveErrors,
	}, logger)

	if opts.interactive {
		loop.SelectTargets = selectTargets
	}
	banner := tui.Banner(criteria, opts.autoPay, opts.telegram)
	redraw := tui.IsTTY()
	if !redraw {
		fmt.Println(banner)
	}
	loop.RenderCycle = func(attempt int, trains []domain.Train) {
		if redraw {
			tui.ClearScreen(os.Stdout)
			fmt.Println(banner)
		}
		fmt.Printf("[%s] attempt %d\n", time.Now().Format("15:04:05"), attempt)
		if len(trains) == 0 {
			fmt.Println("no trains returned")
			return
		}
		fmt.Print(tui.ScheduleTable(trains))
	}

	outcome, err := loop.Run(ctx)
	printSummary(outcome, opts)
	return exitCode(outcome, err, opts)
}

// promptConditions walks the operator through the search conditions.
// Station pairs that match are rejected and re-prompted.
func promptConditions(current domain.SearchCriteria) (domain.SearchCriteria, error) {
	for {
		departure, err := tui.Select("출발역 선택", tui.StationChoices(), current.Departure)
		if err != nil {
			return current, err
		}
		arrival, err := tui.Select("도착역 선택", tui.StationChoices(), current.Arrival)
		if err != nil {
			return current, err
		}
		if departure == arrival {
			fmt.Println("출발역과 도착역은 달라야 합니다.")
			continue
		}
		date, err := tui.Select("출발일 선택", tui.DateChoices(time.Now(), current.Date), current.Date)
		if err != nil {
			return current, err
		}
		hour, err := tui.Select("출발 시각 선택", tui.HourChoices(), current.Hour)
		if err != nil {
			return current, err
		}
		seat, err := tui.Select("좌석 선호 선택", tui.SeatChoices(), string(current.SeatClass))
		if err != nil {
			return current, err
		}

		current.Departure = departure
		current.Arrival = arrival
		current.Date = date
		current.Hour = hour
		current.SeatClass = domain.SeatClass(seat)
		return current, nil
	}
}

// selectTargets is the one-time target-train confirmation for
// interactive runs.
func selectTargets(_ context.Context, trains []domain.Train) ([]domain.TrainKey, error) {
	if len(trains) == 0 {
		fmt.Println("초기 조회 결과가 없습니다. 전체 열차를 대상으로 진행합니다.")
		return nil, nil
	}
	indices, err := tui.MultiSelect("예약 대상 열차 선택", tui.TrainChoices(trains))
	if err != nil {
		return nil, err
	}
	keys := make([]domain.TrainKey, 0, len(indices))
	for _, idx := range indices {
		keys = append(keys, trains[idx].Key())
		fmt.Println("선택: " + trains[idx].Brief())
	}
	return keys, nil
}

func listReservations(ctx context.Context, manager *session.Manager, client *korail.Client, logger *slog.Logger) int {
	sess, err := manager.EnsureAuthenticated(ctx)
	if err != nil {
		return authFailure(err, logger)
	}
	reservations, err := client.Reservations(ctx, sess)
	if err != nil {
		logger.Error("list reservations", "error", err)
		return exitFailed
	}
	fmt.Print(tui.ReservationTable(reservations))
	return 0
}

func listTickets(ctx context.Context, manager *session.Manager, client *korail.Client, logger *slog.Logger) int {
	sess, err := manager.EnsureAuthenticated(ctx)
	if err != nil {
		return authFailure(err, logger)
	}
	tickets, err := client.Tickets(ctx, sess)
	if err != nil {
		logger.Error("list tickets", "error", err)
		return exitFailed
	}
	fmt.Print(tui.TicketTable(tickets))
	return 0
}

func authFailure(err error, logger *slog.Logger) int {
	if errors.Is(err, context.Canceled) {
		return exitCancelled
	}
	logger.Error("authentication failed", "error", err)
	return exitAuthFailed
}

// printSummary reports what the run achieved, whatever the outcome.
func printSummary(outcome *macro.Outcome, opts *options) {
	fmt.Println()
	switch {
	case outcome.Reserved():
		rsv := outcome.Reservation
		fmt.Printf("reservation confirmed: PNR %s, train %s, %s %s → %s\n",
			rsv.PNR, rsv.TrainNo,
			domain.FormatDate(rsv.DepDate), rsv.Departure, rsv.Arrival)
		if rsv.Waitlisted {
			fmt.Println("waitlisted: the seat is granted when one frees up")
		}
		switch {
		case outcome.Paid:
			fmt.Println("payment: completed")
		case errors.Is(outcome.PaymentErr, payment.ErrNoCard):
			fmt.Println("payment: skipped, no card configured (keyring service KTX)")
		case outcome.PaymentErr != nil:
			fmt.Printf("payment: failed (%v); the reservation is kept, pay before the deadline\n", outcome.PaymentErr)
		case opts.autoPay:
			fmt.Println("payment: not attempted")
		}
	case errors.Is(outcome.Err, context.Canceled):
		fmt.Println("cancelled, nothing reserved")
	default:
		fmt.Printf("no reservation after %d attempts", outcome.Attempts)
		if outcome.Err != nil {
			fmt.Printf(": %v", outcome.Err)
		}
		fmt.Println()
	}

	if opts.telegram {
		switch {
		case errors.Is(outcome.NotifyErr, notify.ErrNotConfigured):
			fmt.Println("notification: skipped, telegram not configured (keyring service telegram)")
		case outcome.NotifyErr != nil:
			fmt.Printf("notification: failed (%v)\n", outcome.NotifyErr)
		case errors.Is(outcome.Err, context.Canceled):
		default:
			fmt.Println("notification: sent")
		}
	}
}

func exitCode(outcome *macro.Outcome, err error, opts *options) int {
	if errors.Is(err, context.Canceled) || errors.Is(outcome.Err, context.Canceled) {
		return exitCancelled
	}
	if outcome.Reserved() {
		if opts.autoPay && !outcome.Paid {
			return exitPaymentFail
		}
		return exitReserved
	}
	if errors.Is(err, session.ErrAuthTimeout) {
		return exitAuthFailed
	}
	return exitFailed
}
