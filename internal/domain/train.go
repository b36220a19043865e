package domain

import (
	"fmt"
	"strings"
)

// Seat reservation codes returned in schedule rows.
const (
	SeatCodeAvailable = "11"
	SeatCodeSoldOut   = "13"
	SeatCodeWaiting   = "09"
)

type SeatClass string

const (
	SeatGeneral  SeatClass = "general"
	SeatSpecial  SeatClass = "special"
	SeatAny      SeatClass = "any"
	SeatStanding SeatClass = "standing"
)

func ParseSeatClass(value string) (SeatClass, error) {
	switch SeatClass(value) {
	case SeatGeneral, SeatSpecial, SeatAny, SeatStanding:
		return SeatClass(value), nil
	}
	return "", fmt.Errorf("unknown seat class: %q", value)
}

// Train is one row of a schedule search result. Raw keeps the normalized
// backend fields because a reservation request is built from them.
type Train struct {
	TrainNo      string
	TrainType    string
	TrainGroup   string
	Departure    string
	Arrival      string
	DepTime      string
	ArrTime      string
	DepDate      string
	GeneralSeat  string
	GeneralCode  string
	SpecialSeat  string
	SpecialCode  string
	StandingSeat string
	WaitingSeat  string
	WaitingCode  string
	Price        string
	Raw          map[string]string
}

// TrainFromRow builds a Train from a decoded schedule row. Fields the
// backend omits (common for sold-out classes) become empty strings, which
// read as unavailable rather than as an error.
func TrainFromRow(row map[string]any) Train {
	normalized := make(map[string]string, len(row))
	for key, value := range row {
		if value == nil {
			normalized[key] = ""
			continue
		}
		normalized[key] = fmt.Sprintf("%v", value)
	}

	waitingCode := normalized["h_wait_rsv_flg"]
	if waitingCode == "" {
		waitingCode = normalized["h_wait_rsv_cd"]
	}

	return Train{
		TrainNo:      normalized["h_trn_no"],
		TrainType:    normalized["h_car_tp_nm"],
		TrainGroup:   normalized["h_trn_gp_nm"],
		Departure:    normalized["h_dpt_rs_stn_nm"],
		Arrival:      normalized["h_arv_rs_stn_nm"],
		DepTime:      normalized["h_dpt_tm_qb"],
		ArrTime:      normalized["h_arv_tm_qb"],
		DepDate:      normalized["h_dpt_dt"],
		GeneralSeat:  normalized["h_gen_rsv_nm"],
		GeneralCode:  normalized["h_gen_rsv_cd"],
		SpecialSeat:  normalized["h_spe_rsv_nm"],
		SpecialCode:  normalized["h_spe_rsv_cd"],
		StandingSeat: normalized["h_stnd_rsv_nm"],
		WaitingSeat:  normalized["h_wait_rsv_nm"],
		WaitingCode:  waitingCode,
		Price:        normalized["h_rcvd_amt"],
		Raw:          normalized,
	}
}

func (t Train) HasGeneral() bool {
	return t.GeneralCode == SeatCodeAvailable
}

func (t Train) HasSpecial() bool {
	return t.SpecialCode == SeatCodeAvailable
}

func (t Train) HasAnySeat() bool {
	return t.HasGeneral() || t.HasSpecial()
}

func (t Train) HasStanding() bool {
	return t.Raw["h_stnd_rsv_cd"] == SeatCodeAvailable
}

// HasWaitingList reports whether the row advertises a joinable waiting
// list. The flag field is authoritative; some responses carry only a
// human-readable status name, so that is checked as a fallback.
func (t Train) HasWaitingList() bool {
	code := strings.TrimSpace(t.WaitingCode)
	if code != "" && isDigits(code) && len(code) < 2 {
		code = "0" + code
	}
	if code == SeatCodeWaiting {
		return true
	}

	name := strings.TrimSpace(t.WaitingSeat)
	if name == "" || !strings.Contains(name, "가능") {
		return false
	}
	for _, negative := range []string{"불가", "없", "마감"} {
		if strings.Contains(name, negative) {
			return false
		}
	}
	return true
}

func (t Train) WaitingStatus() string {
	if name := strings.TrimSpace(t.WaitingSeat); name != "" {
		return name
	}
	if t.HasWaitingList() {
		return "가능"
	}
	return "불가"
}

// SeatAvailableFor reports whether the train satisfies the requested class.
func (t Train) SeatAvailableFor(class SeatClass) bool {
	switch class {
	case SeatGeneral:
		return t.HasGeneral()
	case SeatSpecial:
		return t.HasSpecial()
	case SeatStanding:
		return t.HasStanding()
	default:
		return t.HasAnySeat()
	}
}

// ReserveClass maps the requested preference to the concrete class a
// reservation request must name. Standing tickets are booked as general;
// "any" prefers general and falls back to special.
func (t Train) ReserveClass(class SeatClass) SeatClass {
	switch class {
	case SeatGeneral, SeatSpecial:
		return class
	case SeatStanding:
		return SeatGeneral
	}
	if t.HasGeneral() {
		return SeatGeneral
	}
	return SeatSpecial
}

func (t Train) Key() TrainKey {
	return TrainKey{
		DepDate:   t.DepDate,
		TrainNo:   t.TrainNo,
		DepTime:   t.DepTime,
		Departure: t.Departure,
		Arrival:   t.Arrival,
	}
}

func (t Train) Brief() string {
	return fmt.Sprintf("%s %s-%s %s->%s", t.TrainNo, t.DepTime, t.ArrTime, t.Departure, t.Arrival)
}

// TrainKey identifies one selected train across search cycles, where row
// order and pointer identity are not stable.
type TrainKey struct {
	DepDate   string
	TrainNo   string
	DepTime   string
	Departure string
	Arrival   string
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
