package korail

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ktxgo/ktxgo/internal/domain"
)

// Reserve books one train. The outcome is either a Reservation or an
// error that callers must branch on: ErrSessionExpired, ErrSeatUnavailable,
// ErrRejected, a *NetworkError or a *ProtocolError. It refuses to fire
// with a session already known to be invalid.
func (c *Client) Reserve(ctx context.Context, sess *domain.Session, train domain.Train, class domain.SeatClass, passengers int, waitlist bool) (*domain.Reservation, error) {
	if sess == nil || !sess.Valid {
		return nil, fmt.Errorf("reserve: %w", ErrSessionExpired)
	}
	if passengers < 1 {
		passengers = 1
	}

	seatCode := "1"
	if class == domain.SeatSpecial {
		seatCode = "2"
	}
	jobID := "1101"
	if waitlist {
		jobID = "1102"
	}

	depTime := train.Raw["h_dpt_tm"]
	if depTime == "" {
		depTime = train.DepTime
	}
	depTime = strings.ReplaceAll(depTime, ":", "")
	if len(depTime) == 4 {
		depTime += "00"
	}

	runDate := train.Raw["h_run_dt"]
	if runDate == "" {
		runDate = train.DepDate
	}
	classCode := train.Raw["h_trn_clsf_cd"]
	if classCode == "" {
		classCode = trainGroupKTX
	}
	groupCode := train.Raw["h_trn_gp_cd"]
	if groupCode == "" {
		groupCode = trainGroupKTX
	}

	count := strconv.Itoa(passengers)
	form := map[string]string{
		"Device":         "BH",
		"Version":        "999999999",
		"txtMenuId":      "11",
		"txtJobId":       jobID,
		"txtGdNo":        "",
		"hidFreeFlg":     "N",
		"txtTotPsgCnt":   count,
		"txtSeatAttCd1":  "000",
		"txtSeatAttCd2":  "000",
		"txtSeatAttCd3":  "000",
		"txtSeatAttCd4":  "015",
		"txtSeatAttCd5":  "000",
		"txtStndFlg":     "N",
		"txtSrcarCnt":    "0",
		"txtJrnyCnt":     "1",
		"txtJrnySqno1":   "001",
		"txtJrnyTpCd1":   "11",
		"txtDptDt1":      train.DepDate,
		"txtDptRsStnCd1": train.Raw["h_dpt_rs_stn_cd"],
		"txtDptTm1":      depTime,
		"txtArvRsStnCd1": train.Raw["h_arv_rs_stn_cd"],
		"txtTrnNo1":      train.TrainNo,
		"txtRunDt1":      runDate,
		"txtTrnClsfCd1":  classCode,
		"txtTrnGpCd1":    groupCode,
		"txtPsrmClCd1":   seatCode,
		"txtChgFlg1":     "",
		"txtPsgTpCd1":    "1",
		"txtDiscKndCd1":  "000",
		"txtCompaCnt1":   count,
		"txtCardCode_1":  "",
		"txtCardNo_1":    "",
		"txtCardPw_1":    "",
	}

	data, err := c.call(ctx, endpointReserve, form)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) &&
			!errors.Is(err, ErrSessionExpired) &&
			!errors.Is(err, ErrSeatUnavailable) {
			return nil, fmt.Errorf("reserve: %w: %w", ErrRejected, err)
		}
		return nil, fmt.Errorf("reserve: %w", err)
	}

	pnr := strings.TrimSpace(data.strAny("h_pnr_no", "hidPnrNo"))
	if pnr == "" {
		return nil, &ProtocolError{Endpoint: endpointReserve, Detail: "reservation response carries no h_pnr_no"}
	}

	hy := paymentHydration{pnr: pnr}
	hy.fromPayload(data, true)

	return &domain.Reservation{
		PNR:        pnr,
		TrainNo:    train.TrainNo,
		TrainType:  train.TrainType,
		Departure:  train.Departure,
		Arrival:    train.Arrival,
		DepDate:    train.DepDate,
		DepTime:    train.DepTime,
		Amount:     hy.amount,
		Waitlisted: waitlist,
		Payment: domain.PaymentContext{
			WctNo:       hy.wctNo,
			RsvChgNo:    hy.rsvChg,
			TmpJobSqno1: hy.sqno1,
			TmpJobSqno2: hy.sqno2,
		},
	}, nil
}
