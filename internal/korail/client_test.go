package korail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktxgo/ktxgo/internal/domain"
)

// scriptedExecutor answers per endpoint and records every request so
// tests can assert on the forms being posted.
type scriptedExecutor struct {
	responses map[string]*FetchResult
	errs      map[string]error
	calls     []string
	forms     map[string][]map[string]string
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{
		responses: map[string]*FetchResult{},
		errs:      map[string]error{},
		forms:     map[string][]map[string]string{},
	}
}

func (s *scriptedExecutor) respond(endpoint, body string) {
	s.responses[endpoint] = &FetchResult{OK: true, Status: 200, Body: body}
}

func (s *scriptedExecutor) Fetch(_ context.Context, endpoint string, form map[string]string) (*FetchResult, error) {
	s.calls = append(s.calls, endpoint)
	s.forms[endpoint] = append(s.forms[endpoint], form)
	if err := s.errs[endpoint]; err != nil {
		return nil, err
	}
	if res := s.responses[endpoint]; res != nil {
		return res, nil
	}
	return &FetchResult{OK: true, Status: 200, Body: `{"strResult":"SUCC"}`}, nil
}

func (s *scriptedExecutor) lastForm(endpoint string) map[string]string {
	forms := s.forms[endpoint]
	if len(forms) == 0 {
		return nil
	}
	return forms[len(forms)-1]
}

func newTestClient(exec Executor) *Client {
	return NewClient(exec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validSession() *domain.Session {
	return &domain.Session{State: []byte(`{"cookies":[]}`), Valid: true}
}

func testCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		Departure:  "서울",
		Arrival:    "부산",
		Date:       "20260901",
		Hour:       "8",
		SeatClass:  domain.SeatAny,
		Passengers: 1,
	}
}

func TestCallTransportFailureIsNetworkError(t *testing.T) {
	exec := newScriptedExecutor()
	exec.errs[endpointSchedule] = errors.New("fetch rejected")
	client := newTestClient(exec)

	_, err := client.Search(context.Background(), validSession(), testCriteria())

	require.Error(t, err)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, IsTransient(err))
}

func TestCallNonOKStatusIsNetworkError(t *testing.T) {
	exec := newScriptedExecutor()
	exec.responses[endpointSchedule] = &FetchResult{OK: false, Status: 502, Body: "<html>bad gateway</html>"}
	client := newTestClient(exec)

	_, err := client.Search(context.Background(), validSession(), testCriteria())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 502, netErr.Status)
}

func TestCallBadBodiesAreProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", "   "},
		{"not json", "<html>maintenance</html>"},
		{"not an object", `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newScriptedExecutor()
			exec.respond(endpointSchedule, tt.body)
			client := newTestClient(exec)

			_, err := client.Search(context.Background(), validSession(), testCriteria())

			var protoErr *ProtocolError
			require.ErrorAs(t, err, &protoErr)
			assert.False(t, IsTransient(err))
		})
	}
}

func TestCallFailClassification(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			"session expired code",
			`{"strResult":"FAIL","h_msg_cd":"P058","h_msg_txt":"로그인을 해주세요"}`,
			ErrSessionExpired,
		},
		{
			"alternate expired code",
			`{"strResult":"FAIL","h_msg_cd":"WRT300004","h_msg_txt":"세션이 만료되었습니다"}`,
			ErrSessionExpired,
		},
		{
			"no result code",
			`{"strResult":"FAIL","h_msg_cd":"P100","h_msg_txt":"조회 결과가 없습니다"}`,
			ErrNoResults,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newScriptedExecutor()
			exec.respond(endpointSchedule, tt.body)
			client := newTestClient(exec)

			_, err := client.Search(context.Background(), validSession(), testCriteria())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.NotEmpty(t, apiErr.Code)
		})
	}
}

const scheduleBody = `{
	"strResult": "SUCC",
	"trn_infos": {
		"trn_info": [
			{
				"h_trn_no": "101",
				"h_car_tp_nm": "KTX",
				"h_dpt_rs_stn_nm": "서울",
				"h_arv_rs_stn_nm": "부산",
				"h_dpt_rs_stn_cd": "0001",
				"h_arv_rs_stn_cd": "0020",
				"h_dpt_tm_qb": "080000",
				"h_arv_tm_qb": "103000",
				"h_dpt_dt": "20260901",
				"h_gen_rsv_cd": "11",
				"h_gen_rsv_nm": "예약가능",
				"h_spe_rsv_cd": "13",
				"h_rcvd_amt": "59800"
			},
			{
				"h_trn_no": "103",
				"h_car_tp_nm": "KTX",
				"h_dpt_rs_stn_nm": "서울",
				"h_arv_rs_stn_nm": "부산",
				"h_dpt_tm_qb": "090000",
				"h_arv_tm_qb": "113000",
				"h_dpt_dt": "20260901",
				"h_gen_rsv_cd": "13",
				"h_spe_rsv_cd": "13"
			}
		]
	}
}`

func TestSearchParsesTrains(t *testing.T) {
	exec := newScriptedExecutor()
	exec.respond(endpointSchedule, scheduleBody)
	client := newTestClient(exec)

	trains, err := client.Search(context.Background(), validSession(), testCriteria())

	require.NoError(t, err)
	require.Len(t, trains, 2)
	assert.Equal(t, "101", trains[0].TrainNo)
	assert.True(t, trains[0].HasGeneral())
	assert.False(t, trains[1].HasAnySeat())

	form := exec.lastForm(endpointSchedule)
	require.NotNil(t, form)
	assert.Equal(t, "서울", form["txtGoStart"])
	assert.Equal(t, "부산", form["txtGoEnd"])
	assert.Equal(t, "20260901", form["txtGoAbrdDt"])
	assert.Equal(t, "080000", form["txtGoHour"])
	assert.Equal(t, "1", form["txtPsgFlg_1"])
}

func TestSearchSingleObjectRow(t *testing.T) {
	exec := newScriptedExecutor()
	exec.respond(endpointSchedule, `{
		"strResult": "SUCC",
		"trn_infos": {"trn_info": {"h_trn_no": "101", "h_gen_rsv_cd": "11"}}
	}`)
	client := newTestClient(exec)

	trains, err := client.Search(context.Background(), validSession(), testCriteria())

	require.NoError(t, err)
	require.Len(t, trains, 1)
	assert.Equal(t, "101", trains[0].TrainNo)
}

func TestSearchWithoutTrainSectionIsEmpty(t *testing.T) {
	exec := newScriptedExecutor()
	exec.respond(endpointSchedule, `{"strResult":"SUCC"}`)
	client := newTestClient(exec)

	trains, err := client.Search(context.Background(), validSession(), testCriteria())

	require.NoError(t, err)
	assert.Empty(t, trains)
}

func reservableTrain() domain.Train {
	return domain.TrainFromRow(map[string]any{
		"h_trn_no":        "101",
		"h_car_tp_nm":     "KTX",
		"h_dpt_rs_stn_nm": "서울",
		"h_arv_rs_stn_nm": "부산",
		"h_dpt_rs_stn_cd": "0001",
		"h_arv_rs_stn_cd": "0020",
		"h_dpt_tm":        "08:00",
		"h_dpt_tm_qb":     "080000",
		"h_arv_tm_qb":     "103000",
		"h_dpt_dt":        "20260901",
		"h_run_dt":        "20260901",
		"h_trn_clsf_cd":   "100",
		"h_trn_gp_cd":     "100",
		"h_gen_rsv_cd":    "11",
	})
}

func TestReserveRefusesInvalidSession(t *testing.T) {
	exec := newScriptedExecutor()
	client := newTestClient(exec)

	_, err := client.Reserve(context.Background(), &domain.Session{}, reservableTrain(), domain.SeatGeneral, 1, false)

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, exec.calls, "no request may be issued with an invalid session")
}

func TestReserveBuildsRequestAndParsesResult(t *testing.T) {
	exec := newScriptedExecutor()
	exec.respond(endpointReserve, `{
		"strResult": "SUCC",
		"h_pnr_no": "82301234",
		"h_wct_no": "77001",
		"h_tmp_job_sqno1": "000001",
		"h_tmp_job_sqno2": "000002",
		"h_rsv_amt": "59800"
	}`)
	client := newTestClient(exec)

	rsv, err := client.Reserve(context.Background(), validSession(), reservableTrain(), domain.SeatGeneral, 2, false)

	require.NoError(t, err)
	assert.Equal(t, "82301234", rsv.PNR)
	assert.Equal(t, "59800", rsv.Amount)
	assert.Equal(t, "77001", rsv.Payment.WctNo)
	assert.Equal(t, "000001", rsv.Payment.TmpJobSqno1)
	assert.False(t, rsv.Waitlisted)

	form := exec.lastForm(endpointReserve)
	require.NotNil(t, form)
	assert.Equal(t, "1101", form["txtJobId"])
	assert.Equal(t, "1", form["txtPsrmClCd1"])
	assert.Equal(t, "080000", form["txtDptTm1"], "colon-form departure time must be padded")
	assert.Equal(t, "0001", form["txtDptRsStnCd1"])
	assert.Equal(t, "0020", form["txtArvRsStnCd1"])
	assert.Equal(t, "2", form["txtTotPsgCnt"])
	assert.Equal(t, "2", form["txtCompaCnt1"])
}

func TestReserveWaitlistAndSpecialClass(t *testing.T) {
	exec := newScriptedExecutor()
	exec.respond(endpointReserve, `{"strResult":"SUCC","h_pnr_no":"82301235"}`)
	client := newTestClient(exec)

	rsv, err := client.Reserve(context.Background(), validSession(), reservableTrain(), domain.SeatSpecial, 1, true)

	require.NoError(t, err)
	assert.True(t, rsv.Waitlisted)

	form := exec.lastForm(endpointReserve)
	assert.Equal(t, "1102", form["txtJobId"])
	assert.Equal(t, "2", form["txtPsrmClCd1"])
}

func TestReserveOutcomeClassification(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			"seat gone",
			`{"strResult":"FAIL","h_msg_cd":"WRR800029","h_msg_txt":"잔여석이 없습니다"}`,
			ErrSeatUnavailable,
		},
		{
			"sold out",
			`{"strResult":"FAIL","h_msg_cd":"WRR000000","h_msg_txt":"매진되었습니다"}`,
			ErrSeatUnavailable,
		},
		{
			"session expired",
			`{"strResult":"FAIL","h_msg_cd":"WRD000003","h_msg_txt":"로그인 후 사용하십시오"}`,
			ErrSessionExpired,
		},
		{
			"account rejection",
			`{"strResult":"FAIL","h_msg_cd":"WRR999999","h_msg_txt":"예약이 제한된 회원입니다"}`,
			ErrRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newScriptedExecutor()
			exec.respond(endpointReserve, tt.body)
			client := newTestClient(exec)

			_, err := client.Reserve(context.Background(), validSession(), reservableTrain(), domain.SeatGeneral, 1, false)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReserveMissingPNRIsProtocolError(t *testing.T) {
	exec := newScriptedExecutor()
	exec.respond(endpointReserve, `{"strResult":"SUCC"}`)
	client := newTestClient(exec)

	_, err := client.Reserve(context.Background(), validSession(), reservableTrain(), domain.SeatGeneral, 1, false)

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestAPIErrorFormatting(t *testing.T) {
	err := &APIError{Code: "P058", Message: "로그인을 해주세요"}
	assert.Equal(t, "로그인을 해주세요 (P058)", err.Error())

	codeless := &APIError{Message: "backend call failed"}
	assert.Equal(t, "backend call failed", codeless.Error())
}
