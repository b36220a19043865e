package korail

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ktxgo/ktxgo/internal/domain"
)

// ErrIncompleteCard means the card info passed to Pay is missing fields.
var ErrIncompleteCard = errors.New("incomplete card info")

// PayOptions tune how the ticket is issued and charged.
type PayOptions struct {
	// SmartTicket issues the ticket into the KorailTalk app instead of
	// requiring a paper ticket.
	SmartTicket bool
	// Installment is 0 for a lump sum, otherwise the number of months.
	Installment int
}

// Pay settles one reservation with a credit card. It is a single shot:
// no retries happen at this level, whatever the failure, because a lost
// answer could mean a completed charge.
func (c *Client) Pay(ctx context.Context, sess *domain.Session, rsv *domain.Reservation, card domain.CardInfo, opts PayOptions) (*domain.PaymentConfirmation, error) {
	if sess == nil || !sess.Valid {
		return nil, fmt.Errorf("pay: %w", ErrSessionExpired)
	}
	if rsv == nil || strings.TrimSpace(rsv.PNR) == "" {
		return nil, &ProtocolError{Endpoint: endpointPay, Detail: "reservation carries no h_pnr_no"}
	}
	if !card.Complete() {
		return nil, ErrIncompleteCard
	}

	hy := paymentHydration{
		pnr:    rsv.PNR,
		amount: digitsOnly(rsv.Amount),
		wctNo:  strings.TrimSpace(rsv.Payment.WctNo),
		rsvChg: strings.TrimSpace(rsv.Payment.RsvChgNo),
		sqno1:  strings.TrimSpace(rsv.Payment.TmpJobSqno1),
		sqno2:  strings.TrimSpace(rsv.Payment.TmpJobSqno2),
	}

	// Reserve responses often omit part of the payment context. Recover
	// it from the reservation listing, then from the detail view.
	if hy.incomplete() {
		data, err := c.call(ctx, endpointReservationList, mobileForm(map[string]string{"hidPnrNo": rsv.PNR}))
		if err != nil {
			return nil, fmt.Errorf("payment context lookup: %w", err)
		}
		hy.fromPayload(data, true)
	}
	if hy.incomplete() {
		data, err := c.call(ctx, endpointReservationView, mobileForm(nil))
		if err != nil {
			return nil, fmt.Errorf("payment context lookup: %w", err)
		}
		hy.fromPayload(data, false)
	}

	if hy.amount == "" || hy.amount == "0" {
		return nil, &ProtocolError{Endpoint: endpointPay, Detail: "unable to determine payment amount"}
	}
	if hy.wctNo == "" {
		return nil, &ProtocolError{Endpoint: endpointPay, Detail: "unable to determine payment key (h_wct_no)"}
	}
	if hy.sqno1 == "" {
		hy.sqno1 = "000000"
	}
	if hy.sqno2 == "" {
		hy.sqno2 = "000000"
	}
	if hy.rsvChg == "" {
		hy.rsvChg = "000"
	}

	smart := "N"
	if opts.SmartTicket {
		smart = "Y"
	}

	form := mobileForm(map[string]string{
		"hidPnrNo":           rsv.PNR,
		"hidWctNo":           hy.wctNo,
		"hidTmpJobSqno1":     hy.sqno1,
		"hidTmpJobSqno2":     hy.sqno2,
		"hidRsvChgNo":        hy.rsvChg,
		"hidInrecmnsGridcnt": "1",
		"hidStlMnsSqno1":     "1",
		"hidStlMnsCd1":       "02",
		"hidMnsStlAmt1":      hy.amount,
		"hidCrdInpWayCd1":    "@",
		"hidStlCrCrdNo1":     card.Number,
		"hidVanPwd1":         card.Password,
		"hidCrdVlidTrm1":     card.Expire,
		"hidIsmtMnthNum1":    strconv.Itoa(opts.Installment),
		"hidAthnDvCd1":       card.AuthType(),
		"hidAthnVal1":        card.Birthday,
		"hiduserYn":          smart,
	})

	data, err := c.call(ctx, endpointPay, form)
	if err != nil {
		return nil, fmt.Errorf("pay: %w", err)
	}

	confirmation := &domain.PaymentConfirmation{
		Result:  data.str("strResult"),
		Message: data.str("h_msg_txt"),
		PNR:     data.str("h_pnr_no"),
	}
	if confirmation.PNR == "" {
		confirmation.PNR = rsv.PNR
	}
	return confirmation, nil
}

// paymentHydration accumulates the fields a payment call needs, scraped
// from whichever payload happens to carry them.
type paymentHydration struct {
	pnr    string
	amount string
	wctNo  string
	rsvChg string
	sqno1  string
	sqno2  string
}

func (h *paymentHydration) incomplete() bool {
	return h.amount == "" || h.amount == "0" ||
		h.wctNo == "" ||
		h.rsvChg == "" ||
		h.sqno1 == "" || h.sqno1 == "000000" ||
		h.sqno2 == "" || h.sqno2 == "000000"
}

func (h *paymentHydration) fromItem(item payload, requirePNR bool) {
	if requirePNR {
		itemPNR := strings.TrimSpace(item.strAny("h_pnr_no", "hidPnrNo"))
		if itemPNR != "" && itemPNR != h.pnr {
			return
		}
	}

	if h.amount == "" || h.amount == "0" {
		for _, key := range []string{"h_rsv_amt", "h_rcvd_amt", "hidPayAmount"} {
			if candidate := digitsOnly(item.str(key)); candidate != "" && candidate != "0" {
				h.amount = candidate
				break
			}
		}
	}
	if h.wctNo == "" {
		h.wctNo = strings.TrimSpace(item.strAny("h_wct_no", "hidWctNo"))
	}
	if h.rsvChg == "" {
		h.rsvChg = strings.TrimSpace(item.strAny("h_rsv_chg_no", "hidRsvChgNo"))
	}
	if h.sqno1 == "" || h.sqno1 == "000000" {
		if candidate := strings.TrimSpace(item.str("h_tmp_job_sqno1")); candidate != "" {
			h.sqno1 = candidate
		}
	}
	if h.sqno2 == "" || h.sqno2 == "000000" {
		if candidate := strings.TrimSpace(item.str("h_tmp_job_sqno2")); candidate != "" {
			h.sqno2 = candidate
		}
	}
}

func (h *paymentHydration) fromPayload(data payload, includeTop bool) {
	if includeTop {
		h.fromItem(data, false)
	}
	infos := data.section("jrny_infos")
	if infos == nil {
		return
	}
	for _, jrny := range infos.items("jrny_info") {
		h.fromItem(jrny, false)

		trainInfos := jrny.section("train_infos")
		if trainInfos == nil {
			continue
		}
		for _, train := range trainInfos.items("train_info") {
			h.fromItem(train, true)
		}
	}
}
