// Package korail speaks the Korail booking protocol: it builds request
// forms, classifies failures and parses responses. Requests are executed
// through an Executor because the backend only accepts calls that
// originate from a real logged-in page.
package korail

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// Page URLs on the web origin.
const (
	BaseURL   = "https://www.korail.com"
	LoginURL  = BaseURL + "/ticket/login"
	SearchURL = BaseURL + "/ticket/search/general"
)

// API endpoints, relative to the page origin.
const (
	endpointSchedule        = "/classes/com.korail.mobile.seatMovie.ScheduleView"
	endpointLoginCheck      = "/ebizweb/common/loginCheck"
	endpointReserve         = "/classes/com.korail.mobile.certification.TicketReservation"
	endpointReservationList = "/classes/com.korail.mobile.certification.ReservationList"
	endpointReservationView = "/classes/com.korail.mobile.reservation.ReservationView"
	endpointMyTicket        = "/classes/com.korail.mobile.myTicket.MyTicketList"
	endpointPay             = "/classes/com.korail.mobile.payment.ReservationPayment"
)

// Client identification the mobile endpoints expect. Version and key are
// the ones the KorailTalk app ships with.
const (
	mobileDevice  = "AD"
	mobileVersion = "250601002"
	mobileKey     = "korail1234567890"
)

const (
	trainGroupKTX = "100"
	trainGroupAll = "00"
)

// FetchResult is the raw outcome of one in-page request.
type FetchResult struct {
	OK     bool
	Status int
	Body   string
}

// Executor runs one backend call from an authenticated page context. The
// production implementation is the browser bridge; tests substitute a
// canned one.
type Executor interface {
	Fetch(ctx context.Context, endpoint string, form map[string]string) (*FetchResult, error)
}

type Client struct {
	exec   Executor
	logger *slog.Logger
}

func NewClient(exec Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{exec: exec, logger: logger}
}

// call posts one form and returns the decoded payload. Transport failures
// and non-2xx statuses come back as *NetworkError, contract violations as
// *ProtocolError, and strResult=FAIL as *APIError.
func (c *Client) call(ctx context.Context, endpoint string, form map[string]string) (payload, error) {
	res, err := c.exec.Fetch(ctx, endpoint, form)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	if !res.OK {
		return nil, &NetworkError{Endpoint: endpoint, Status: res.Status}
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return nil, &ProtocolError{Endpoint: endpoint, Detail: "empty response"}
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &ProtocolError{Endpoint: endpoint, Detail: "invalid JSON"}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ProtocolError{Endpoint: endpoint, Detail: "payload is not an object"}
	}
	data := payload(obj)

	if data.str("strResult") == "FAIL" {
		apiErr := &APIError{
			Code:    data.strAny("h_msg_cd", "code"),
			Message: data.strAny("h_msg_txt", "message"),
		}
		if apiErr.Message == "" {
			apiErr.Message = "backend call failed"
		}
		c.logger.Debug("backend returned FAIL", "endpoint", endpoint, "code", apiErr.Code)
		return nil, apiErr
	}

	return data, nil
}

func mobileForm(extra map[string]string) map[string]string {
	form := map[string]string{
		"Device":  mobileDevice,
		"Version": mobileVersion,
		"Key":     mobileKey,
	}
	for k, v := range extra {
		form[k] = v
	}
	return form
}
