package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrUnknownStation = errors.New("unknown station")
	ErrSameStation    = errors.New("departure and arrival must be different")
	ErrBadDate        = errors.New("date must be YYYYMMDD")
	ErrBadHour        = errors.New("time must be HH (00-23)")
	ErrBadPassengers  = errors.New("passengers must be between 1 and 9")
)

// SearchCriteria is the immutable query for one run: every search cycle
// uses the same criteria until the run terminates.
type SearchCriteria struct {
	Departure  string
	Arrival    string
	Date       string // YYYYMMDD
	Hour       string // HH, meaning departures from that hour onward
	SeatClass  SeatClass
	Passengers int
}

func (c SearchCriteria) Validate() error {
	if !KnownStation(c.Departure) {
		return fmt.Errorf("%w: %q", ErrUnknownStation, c.Departure)
	}
	if !KnownStation(c.Arrival) {
		return fmt.Errorf("%w: %q", ErrUnknownStation, c.Arrival)
	}
	if c.Departure == c.Arrival {
		return ErrSameStation
	}
	if err := ValidateDate(c.Date); err != nil {
		return err
	}
	if err := ValidateHour(c.Hour); err != nil {
		return err
	}
	if _, err := ParseSeatClass(string(c.SeatClass)); err != nil {
		return err
	}
	if c.Passengers < 1 || c.Passengers > 9 {
		return ErrBadPassengers
	}
	return nil
}

func (c SearchCriteria) Summary() string {
	return fmt.Sprintf("%s → %s  %s %s:00  seat=%s", c.Departure, c.Arrival, c.Date, c.Hour, c.SeatClass)
}

func ValidateDate(value string) error {
	if len(value) != 8 || !isDigits(value) {
		return ErrBadDate
	}
	if _, err := time.Parse("20060102", value); err != nil {
		return ErrBadDate
	}
	return nil
}

func ValidateHour(value string) error {
	if len(value) == 0 || len(value) > 2 || !isDigits(value) {
		return ErrBadHour
	}
	hour, err := strconv.Atoi(value)
	if err != nil || hour > 23 {
		return ErrBadHour
	}
	return nil
}

// NormalizeHour turns "7" into "07".
func NormalizeHour(value string) string {
	if len(value) == 1 {
		return "0" + value
	}
	return value
}

// Travel defaults lean ten minutes ahead so a departure right now is not
// silently excluded from the first search.
func DefaultTravelDate(now time.Time) string {
	return now.Add(10 * time.Minute).Format("20060102")
}

func DefaultTravelHour(now time.Time) string {
	return now.Add(10 * time.Minute).Format("15")
}

// BookingHorizonDays is how many days ahead departures can be booked.
// The booking window rolls forward one extra day at 07:00.
func BookingHorizonDays(now time.Time) int {
	if now.Hour() >= 7 {
		return 31
	}
	return 30
}
