// Package tui holds the interactive pieces of the command line: single
// and multi select pickers for the search conditions and target trains,
// and the schedule table rendering.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ktxgo/ktxgo/internal/domain"
)

// ErrCancelled means the operator backed out of a prompt.
var ErrCancelled = errors.New("selection cancelled")

// Choice is one selectable row: a display label and the value it
// stands for.
type Choice struct {
	Label string
	Value string
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

// selectModel is a single-choice picker: arrows move, enter confirms.
type selectModel struct {
	title     string
	choices   []Choice
	cursor    int
	done      bool
	cancelled bool
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n")
	for i, choice := range m.choices {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> "+choice.Label) + "\n")
			continue
		}
		b.WriteString("  " + choice.Label + "\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ 이동 · Enter 선택 · Ctrl-C 취소") + "\n")
	return b.String()
}

// Select prompts for one choice, starting at the choice whose value is
// initial when present.
func Select(title string, choices []Choice, initial string) (string, error) {
	model := selectModel{title: title, choices: choices}
	for i, choice := range choices {
		if choice.Value == initial {
			model.cursor = i
			break
		}
	}

	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return "", err
	}
	result := final.(selectModel)
	if result.cancelled {
		return "", ErrCancelled
	}
	return result.choices[result.cursor].Value, nil
}

// multiSelectModel is a checkbox picker: space toggles, ctrl+a selects
// everything, ctrl+r clears, enter confirms a non-empty selection.
type multiSelectModel struct {
	title     string
	choices   []Choice
	cursor    int
	checked   map[int]bool
	done      bool
	cancelled bool
}

func (m multiSelectModel) Init() tea.Cmd { return nil }

func (m multiSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case " ":
		m.checked[m.cursor] = !m.checked[m.cursor]
	case "ctrl+a":
		for i := range m.choices {
			m.checked[i] = true
		}
	case "ctrl+r":
		m.checked = map[int]bool{}
	case "enter":
		if len(m.selected()) > 0 {
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m multiSelectModel) selected() []int {
	var out []int
	for i := range m.choices {
		if m.checked[i] {
			out = append(out, i)
		}
	}
	return out
}

func (m multiSelectModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n")
	for i, choice := range m.choices {
		mark := "[ ]"
		line := fmt.Sprintf("%s %s", mark, choice.Label)
		if m.checked[i] {
			line = selectedStyle.Render(fmt.Sprintf("[x] %s", choice.Label))
		}
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + line + "\n")
			continue
		}
		b.WriteString("  " + line + "\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ 이동 · Space 선택 · Ctrl-A 전체 · Ctrl-R 해제 · Enter 완료 · Ctrl-C 취소") + "\n")
	return b.String()
}

// MultiSelect prompts for one or more choices and returns the selected
// indices in display order.
func MultiSelect(title string, choices []Choice) ([]int, error) {
	model := multiSelectModel{title: title, choices: choices, checked: map[int]bool{}}

	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, err
	}
	result := final.(multiSelectModel)
	if result.cancelled {
		return nil, ErrCancelled
	}
	return result.selected(), nil
}

// StationChoices lists every served station.
func StationChoices() []Choice {
	choices := make([]Choice, 0, len(domain.Stations))
	for _, station := range domain.Stations {
		choices = append(choices, Choice{Label: station, Value: station})
	}
	return choices
}

// DateChoices spans today through the booking horizon. A current value
// outside the horizon is kept selectable at the top.
func DateChoices(now time.Time, current string) []Choice {
	days := domain.BookingHorizonDays(now)
	choices := make([]Choice, 0, days+2)
	seen := false
	for i := 0; i <= days; i++ {
		day := now.AddDate(0, 0, i)
		value := day.Format("20060102")
		if value == current {
			seen = true
		}
		choices = append(choices, Choice{
			Label: day.Format("2006/01/02 Mon"),
			Value: value,
		})
	}
	if !seen && current != "" {
		if day, err := time.Parse("20060102", current); err == nil {
			choices = append([]Choice{{Label: day.Format("2006/01/02 Mon (직접지정)"), Value: current}}, choices...)
		}
	}
	return choices
}

// HourChoices lists the 24 departure hours.
func HourChoices() []Choice {
	choices := make([]Choice, 0, 24)
	for hour := 0; hour < 24; hour++ {
		choices = append(choices, Choice{
			Label: fmt.Sprintf("%02d시", hour),
			Value: fmt.Sprintf("%02d", hour),
		})
	}
	return choices
}

// SeatChoices lists the seat-class preferences.
func SeatChoices() []Choice {
	return []Choice{
		{Label: "일반석", Value: string(domain.SeatGeneral)},
		{Label: "특석", Value: string(domain.SeatSpecial)},
		{Label: "모두 (일반석/특석)", Value: string(domain.SeatAny)},
		{Label: "입석/자유석", Value: string(domain.SeatStanding)},
	}
}

// TrainChoices labels each schedule row for the target-train picker.
func TrainChoices(trains []domain.Train) []Choice {
	choices := make([]Choice, 0, len(trains))
	for i, train := range trains {
		choices = append(choices, Choice{
			Label: fmt.Sprintf("[%2d] %-5s %s-%s %s->%s 일반:%s 특실:%s 입석:%s",
				i, train.TrainNo,
				domain.FormatTime(train.DepTime), domain.FormatTime(train.ArrTime),
				train.Departure, train.Arrival,
				orDash(train.GeneralSeat), orDash(train.SpecialSeat), orDash(train.StandingSeat)),
			Value: train.TrainNo,
		})
	}
	return choices
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
