package domain

import "fmt"

// Reservation is a confirmed (or waitlisted) booking returned by the
// backend. Payment carries the context fields the payment call needs;
// some reserve responses omit them and they are hydrated later from the
// reservation listing.
type Reservation struct {
	PNR        string
	TrainNo    string
	TrainType  string
	Departure  string
	Arrival    string
	DepDate    string
	DepTime    string
	Amount     string
	Waitlisted bool
	Payment    PaymentContext
}

type PaymentContext struct {
	WctNo       string
	RsvChgNo    string
	TmpJobSqno1 string
	TmpJobSqno2 string
}

type PaymentConfirmation struct {
	Result  string
	Message string
	PNR     string
}

// CardInfo holds payment card data for the duration of a single payment
// call. It is never logged in full and never persisted.
type CardInfo struct {
	Number   string // full card number, no hyphens
	Password string // first two digits of the card password
	Birthday string // YYMMDD, or a 10-digit business registration number
	Expire   string // YYMM
}

func (c CardInfo) Complete() bool {
	return c.Number != "" && c.Password != "" && c.Birthday != "" && c.Expire != ""
}

// AuthType is "J" for an individual (six-digit birthday) and "S" for a
// business registration number.
func (c CardInfo) AuthType() string {
	if len(c.Birthday) <= 6 {
		return "J"
	}
	return "S"
}

func (c CardInfo) MaskedNumber() string {
	if len(c.Number) < 4 {
		return "****"
	}
	return "..." + c.Number[len(c.Number)-4:]
}

// Profile is the logged-in member identity reported by the login check.
type Profile struct {
	MemberNo string
	Name     string
	LoginID  string
}

// ReservationSummary is one outstanding (unpaid) booking from the
// reservation listing.
type ReservationSummary struct {
	PNR          string
	TrainNo      string
	TrainType    string
	Departure    string
	Arrival      string
	DepDate      string
	DepTime      string
	Amount       string
	PayLimitDate string
	PayLimitTime string
}

// Ticket is one issued (paid) ticket.
type Ticket struct {
	PNR       string
	TrainNo   string
	TrainType string
	Departure string
	Arrival   string
	DepDate   string
	DepTime   string
	ArrTime   string
	Car       string
	Seat      string
	Amount    string
	Buyer     string
}

func FormatDate(value string) string {
	if len(value) == 8 {
		return fmt.Sprintf("%s-%s-%s", value[:4], value[4:6], value[6:])
	}
	return value
}

func FormatTime(value string) string {
	if len(value) >= 4 {
		return fmt.Sprintf("%s:%s", value[:2], value[2:4])
	}
	return value
}
