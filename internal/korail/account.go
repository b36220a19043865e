package korail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ktxgo/ktxgo/internal/domain"
)

// LoggedIn probes the login check endpoint. Any failure reads as "not
// logged in"; the caller retries on its own schedule.
func (c *Client) LoggedIn(ctx context.Context, sess *domain.Session) bool {
	data, err := c.call(ctx, endpointLoginCheck, nil)
	if err != nil {
		return false
	}
	return loginConfirmed(data)
}

// loginConfirmed untangles the login check response. The endpoint answers
// strResult=SUCC even for anonymous callers, so the message text has to be
// consulted first.
func loginConfirmed(data payload) bool {
	if deniedLogin(data) {
		return false
	}

	switch data.str("strResult") {
	case "SUCC", "SUCCESS", "Y":
		return true
	}

	for _, key := range []string{"loginYn", "isLogin"} {
		if meaningful(data.str(key)) {
			return true
		}
	}
	return false
}

func deniedLogin(data payload) bool {
	msg := strings.TrimSpace(data.str("h_msg_txt"))
	if strings.Contains(msg, "로그인 정보가 없습니다") {
		return true
	}
	return strings.Contains(msg, "로그인") && strings.Contains(msg, "없")
}

// meaningful filters out the assorted spellings of "no".
func meaningful(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	switch strings.ToUpper(v) {
	case "N", "FALSE", "0":
		return false
	}
	return true
}

// Profile returns the member identity behind the current session.
func (c *Client) Profile(ctx context.Context, sess *domain.Session) (*domain.Profile, error) {
	data, err := c.call(ctx, endpointLoginCheck, nil)
	if err != nil {
		return nil, fmt.Errorf("login profile: %w", err)
	}
	if deniedLogin(data) {
		return nil, fmt.Errorf("login profile: %w", ErrSessionExpired)
	}

	profile := &domain.Profile{
		MemberNo: firstMeaningful(data, "strMbCrdNo", "mbCrdNo", "strCustNo", "custNo"),
		Name:     firstMeaningful(data, "strCustNm", "custNm", "h_cust_nm", "strUserNm"),
		LoginID:  firstMeaningful(data, "strCustId", "custId", "userId"),
	}
	if profile.MemberNo == "" && profile.Name == "" && profile.LoginID == "" {
		switch data.str("strResult") {
		case "SUCC", "SUCCESS", "Y":
			return profile, nil
		}
		return nil, fmt.Errorf("login profile: %w", ErrSessionExpired)
	}
	return profile, nil
}

func firstMeaningful(data payload, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(data.str(key)); meaningful(value) {
			return value
		}
	}
	return ""
}

// reservationInheritKeys are the journey-level fields each train row of a
// reservation listing inherits when its own copy is empty.
var reservationInheritKeys = []string{
	"h_pnr_no",
	"h_rsv_amt",
	"h_ntisu_lmt_dt",
	"h_ntisu_lmt_tm",
	"h_run_dt",
	"h_dpt_dt",
	"h_dpt_tm",
	"h_dpt_rs_stn_nm",
	"h_arv_rs_stn_nm",
	"h_trn_no",
	"h_rsv_chg_no",
	"hidRsvChgNo",
	"h_wct_no",
}

// Reservations lists outstanding (unpaid) bookings. An empty account is
// an empty slice, not an error.
func (c *Client) Reservations(ctx context.Context, sess *domain.Session) ([]domain.ReservationSummary, error) {
	data, err := c.call(ctx, endpointReservationView, mobileForm(nil))
	if err != nil {
		if errors.Is(err, ErrNoResults) {
			return nil, nil
		}
		return nil, fmt.Errorf("reservation list: %w", err)
	}

	infos := data.section("jrny_infos")
	if infos == nil {
		return nil, nil
	}

	var summaries []domain.ReservationSummary
	for _, jrny := range infos.items("jrny_info") {
		trainInfos := jrny.section("train_infos")
		if trainInfos == nil {
			summaries = append(summaries, reservationSummary(jrny))
			continue
		}
		trains := trainInfos.items("train_info")
		if len(trains) == 0 {
			summaries = append(summaries, reservationSummary(jrny))
			continue
		}
		for _, train := range trains {
			summaries = append(summaries, reservationSummary(mergeInherit(train, jrny, reservationInheritKeys)))
		}
	}
	return summaries, nil
}

func reservationSummary(row payload) domain.ReservationSummary {
	return domain.ReservationSummary{
		PNR:          row.strAny("h_pnr_no", "hidPnrNo"),
		TrainNo:      row.str("h_trn_no"),
		TrainType:    row.strAny("h_trn_clsf_nm", "h_car_tp_nm"),
		Departure:    row.str("h_dpt_rs_stn_nm"),
		Arrival:      row.str("h_arv_rs_stn_nm"),
		DepDate:      row.strAny("h_dpt_dt", "h_run_dt"),
		DepTime:      row.str("h_dpt_tm"),
		Amount:       row.str("h_rsv_amt"),
		PayLimitDate: row.str("h_ntisu_lmt_dt"),
		PayLimitTime: row.str("h_ntisu_lmt_tm"),
	}
}

// ticketInheritKeys are sale-level fields pushed down to each ticket row.
var ticketInheritKeys = []string{
	"h_pnr_no",
	"h_orgtk_sale_dt",
	"h_orgtk_wct_no",
	"h_orgtk_ret_sale_dt",
	"h_orgtk_sale_sqno",
	"h_orgtk_ret_pwd",
	"h_rcvd_amt",
	"h_buy_ps_nm",
}

// Tickets lists issued (paid) tickets. The mobile parameter set is tried
// first, then the web one; some accounts only answer one of them.
func (c *Client) Tickets(ctx context.Context, sess *domain.Session) ([]domain.Ticket, error) {
	candidates := []map[string]string{
		mobileForm(map[string]string{
			"txtDeviceId":    "",
			"txtIndex":       "1",
			"h_page_no":      "1",
			"h_abrd_dt_from": "",
			"h_abrd_dt_to":   "",
			"hiduserYn":      "Y",
		}),
		{
			"Device":         "BH",
			"Version":        "999999999",
			"txtDeviceId":    "",
			"txtIndex":       "1",
			"h_page_no":      "1",
			"h_abrd_dt_from": "",
			"h_abrd_dt_to":   "",
			"hiduserYn":      "Y",
		},
	}

	var data payload
	for _, form := range candidates {
		var err error
		data, err = c.call(ctx, endpointMyTicket, form)
		if err == nil {
			break
		}
		if errors.Is(err, ErrNoResults) {
			return nil, nil
		}
		data = nil
	}
	if data == nil {
		return nil, nil
	}

	var tickets []domain.Ticket
	for _, entry := range data.items("reservation_list") {
		ticketItems := entry.items("ticket_list")
		if len(ticketItems) == 0 {
			tickets = append(tickets, ticketFromRow(entry))
			continue
		}
		for _, ticket := range ticketItems {
			trains := ticket.items("train_info")
			if len(trains) == 0 {
				merged := mergeInherit(ticket, entry, ticketInheritKeys)
				tickets = append(tickets, ticketFromRow(merged))
				continue
			}
			for _, train := range trains {
				merged := mergeInherit(train, ticket, ticketInheritKeys)
				merged = mergeInherit(merged, entry, ticketInheritKeys)
				tickets = append(tickets, ticketFromRow(merged))
			}
		}
	}
	return tickets, nil
}

func ticketFromRow(row payload) domain.Ticket {
	return domain.Ticket{
		PNR:       row.strAny("h_pnr_no", "hidPnrNo"),
		TrainNo:   row.str("h_trn_no"),
		TrainType: row.strAny("h_trn_clsf_nm", "h_car_tp_nm"),
		Departure: row.str("h_dpt_rs_stn_nm"),
		Arrival:   row.str("h_arv_rs_stn_nm"),
		DepDate:   row.strAny("h_dpt_dt", "h_run_dt"),
		DepTime:   row.str("h_dpt_tm"),
		ArrTime:   row.str("h_arv_tm"),
		Car:       row.str("h_srcar_no"),
		Seat:      row.str("h_seat_no"),
		Amount:    row.str("h_rcvd_amt"),
		Buyer:     row.str("h_buy_ps_nm"),
	}
}
