package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktxgo/ktxgo/internal/domain"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+a":
		return tea.KeyMsg{Type: tea.KeyCtrlA}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func drive(t *testing.T, model tea.Model, keys ...string) tea.Model {
	t.Helper()
	for _, k := range keys {
		next, _ := model.Update(key(k))
		model = next
	}
	return model
}

func TestSelectModelNavigatesAndConfirms(t *testing.T) {
	model := selectModel{title: "t", choices: []Choice{{Label: "a", Value: "a"}, {Label: "b", Value: "b"}, {Label: "c", Value: "c"}}}

	final := drive(t, model, "down", "down", "up", "enter").(selectModel)

	assert.True(t, final.done)
	assert.Equal(t, 1, final.cursor)
	assert.Equal(t, "b", final.choices[final.cursor].Value)
}

func TestSelectModelCursorStaysInBounds(t *testing.T) {
	model := selectModel{choices: []Choice{{Value: "a"}, {Value: "b"}}}

	final := drive(t, model, "up", "down", "down", "down").(selectModel)

	assert.Equal(t, 1, final.cursor)
}

func TestSelectModelCancel(t *testing.T) {
	model := selectModel{choices: []Choice{{Value: "a"}}}

	final := drive(t, model, "ctrl+c").(selectModel)

	assert.True(t, final.cancelled)
}

func TestMultiSelectToggleAndConfirm(t *testing.T) {
	model := multiSelectModel{
		choices: []Choice{{Value: "101"}, {Value: "103"}, {Value: "105"}},
		checked: map[int]bool{},
	}

	final := drive(t, model, " ", "down", "down", " ", "enter").(multiSelectModel)

	assert.True(t, final.done)
	assert.Equal(t, []int{0, 2}, final.selected())
}

func TestMultiSelectEnterRequiresSelection(t *testing.T) {
	model := multiSelectModel{choices: []Choice{{Value: "101"}}, checked: map[int]bool{}}

	final := drive(t, model, "enter").(multiSelectModel)

	assert.False(t, final.done, "an empty selection cannot be confirmed")
}

func TestMultiSelectSelectAllAndReset(t *testing.T) {
	model := multiSelectModel{
		choices: []Choice{{Value: "a"}, {Value: "b"}, {Value: "c"}},
		checked: map[int]bool{},
	}

	all := drive(t, model, "ctrl+a").(multiSelectModel)
	assert.Len(t, all.selected(), 3)

	none := drive(t, all, "ctrl+r").(multiSelectModel)
	assert.Empty(t, none.selected())
}

func TestDateChoicesRespectHorizon(t *testing.T) {
	morning := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	afternoon := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	assert.Len(t, DateChoices(morning, ""), 31, "30 days ahead before 07:00, plus today")
	assert.Len(t, DateChoices(afternoon, ""), 32, "31 days ahead from 07:00, plus today")
}

func TestDateChoicesKeepOutOfHorizonCurrent(t *testing.T) {
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	choices := DateChoices(now, "20270101")

	require.NotEmpty(t, choices)
	assert.Equal(t, "20270101", choices[0].Value)
	assert.Contains(t, choices[0].Label, "직접지정")
}

func sampleTrains() []domain.Train {
	return []domain.Train{
		domain.TrainFromRow(map[string]any{
			"h_trn_no":        "101",
			"h_car_tp_nm":     "KTX",
			"h_dpt_rs_stn_nm": "서울",
			"h_arv_rs_stn_nm": "부산",
			"h_dpt_tm_qb":     "080000",
			"h_arv_tm_qb":     "103000",
			"h_gen_rsv_cd":    "11",
			"h_gen_rsv_nm":    "예약가능",
			"h_spe_rsv_cd":    "13",
			"h_rcvd_amt":      "059800",
		}),
	}
}

func TestScheduleTableColumns(t *testing.T) {
	table := ScheduleTable(sampleTrains())

	assert.Contains(t, table, "101")
	assert.Contains(t, table, "서울->부산")
	assert.Contains(t, table, "08:00-10:30")
	assert.Contains(t, table, "59800")
	assert.NotContains(t, table, "059800", "price is shown without leading zeros")
}

func TestTrainChoicesLabels(t *testing.T) {
	choices := TrainChoices(sampleTrains())

	require.Len(t, choices, 1)
	assert.Equal(t, "101", choices[0].Value)
	assert.Contains(t, choices[0].Label, "서울->부산")
	assert.Contains(t, choices[0].Label, "일반:예약가능")
}

func TestEmptyTables(t *testing.T) {
	assert.True(t, strings.Contains(ReservationTable(nil), "없습니다"))
	assert.True(t, strings.Contains(TicketTable(nil), "없습니다"))
}
