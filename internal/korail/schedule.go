package korail

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ktxgo/ktxgo/internal/domain"
)

// Search runs one schedule query and returns every train in the answer,
// including fully booked ones; availability is judged by the caller. A
// response without a train section is an empty result, not an error.
func (c *Client) Search(ctx context.Context, sess *domain.Session, criteria domain.SearchCriteria) ([]domain.Train, error) {
	_ = sess // search works logged out; the session rides along in the page

	form := map[string]string{
		"Device":         "BH",
		"Version":        "999999999",
		"radJobId":       "1",
		"selGoTrain":     trainGroupAll,
		"txtCardPsgCnt":  "0",
		"txtGdNo":        "",
		"txtGoAbrdDt":    criteria.Date,
		"txtGoEnd":       criteria.Arrival,
		"txtGoHour":      domain.NormalizeHour(criteria.Hour) + "0000",
		"txtGoStart":     criteria.Departure,
		"txtJobDv":       "",
		"txtMenuId":      "11",
		"txtPsgFlg_1":    strconv.Itoa(criteria.Passengers),
		"txtPsgFlg_2":    "0",
		"txtPsgFlg_3":    "0",
		"txtPsgFlg_4":    "0",
		"txtPsgFlg_5":    "0",
		"txtSeatAttCd_2": "000",
		"txtSeatAttCd_3": "000",
		"txtSeatAttCd_4": "015",
		"txtTrnGpCd":     trainGroupKTX,
		"searchType":     "GENERAL",
	}

	data, err := c.call(ctx, endpointSchedule, form)
	if err != nil {
		return nil, fmt.Errorf("schedule search: %w", err)
	}

	infos := data.section("trn_infos")
	if infos == nil {
		return nil, nil
	}

	rows := infos.items("trn_info")
	trains := make([]domain.Train, 0, len(rows))
	for _, row := range rows {
		trains = append(trains, domain.TrainFromRow(row))
	}
	return trains, nil
}
