package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/ktxgo/ktxgo/internal/domain"
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	soldOutStyle = lipgloss.NewStyle().Faint(true)
	availStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// IsTTY reports whether stdin is an interactive terminal. It decides
// the interactive default and whether cycles redraw in place.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ClearScreen resets the terminal for a per-cycle redraw.
func ClearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

// Banner renders the run's fixed condition line.
func Banner(criteria domain.SearchCriteria, autoPay, telegram bool) string {
	line := "KTXgo: " + criteria.Summary()
	if autoPay {
		line += "  auto-pay"
	}
	if telegram {
		line += "  telegram"
	}
	return bannerStyle.Render(line)
}

// ScheduleTable renders one search result. Availability cells are
// styled by state; a styled row still lines up because the widths are
// applied before coloring.
func ScheduleTable(trains []domain.Train) string {
	var b strings.Builder
	header := fmt.Sprintf("%3s %-8s %-10s %-14s %-12s %-9s %-9s %-9s %s",
		"idx", "train", "type", "dep->arr", "time", "gen", "spe", "stnd", "price")
	b.WriteString(headerStyle.Render(header) + "\n")

	for i, train := range trains {
		route := clip(train.Departure+"->"+train.Arrival, 14)
		times := clip(domain.FormatTime(train.DepTime)+"-"+domain.FormatTime(train.ArrTime), 12)
		price := strings.TrimLeft(train.Price, "0")
		if price == "" {
			price = "0"
		}
		row := fmt.Sprintf("%3d %-8s %-10s %-14s %-12s %s %s %s %s",
			i, train.TrainNo, clip(train.TrainType, 10), route, times,
			seatCell(train.GeneralSeat, train.HasGeneral()),
			seatCell(train.SpecialSeat, train.HasSpecial()),
			seatCell(train.StandingSeat, train.HasStanding()),
			price)
		b.WriteString(row + "\n")
	}
	return b.String()
}

// ReservationTable renders outstanding bookings.
func ReservationTable(reservations []domain.ReservationSummary) string {
	if len(reservations) == 0 {
		return "결제 대기 중인 예약이 없습니다.\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %-8s %-10s %-16s %-12s %-10s %s",
		"pnr", "train", "type", "route", "departure", "amount", "pay by")) + "\n")
	for _, rsv := range reservations {
		b.WriteString(fmt.Sprintf("%-10s %-8s %-10s %-16s %-12s %-10s %s %s\n",
			rsv.PNR, rsv.TrainNo, clip(rsv.TrainType, 10),
			clip(rsv.Departure+"->"+rsv.Arrival, 16),
			domain.FormatDate(rsv.DepDate)+" "+domain.FormatTime(rsv.DepTime),
			rsv.Amount,
			domain.FormatDate(rsv.PayLimitDate), domain.FormatTime(rsv.PayLimitTime)))
	}
	return b.String()
}

// TicketTable renders issued tickets.
func TicketTable(tickets []domain.Ticket) string {
	if len(tickets) == 0 {
		return "발권된 승차권이 없습니다.\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %-8s %-10s %-16s %-12s %-6s %-6s %s",
		"pnr", "train", "type", "route", "departure", "car", "seat", "amount")) + "\n")
	for _, ticket := range tickets {
		b.WriteString(fmt.Sprintf("%-10s %-8s %-10s %-16s %-12s %-6s %-6s %s\n",
			ticket.PNR, ticket.TrainNo, clip(ticket.TrainType, 10),
			clip(ticket.Departure+"->"+ticket.Arrival, 16),
			domain.FormatDate(ticket.DepDate)+" "+domain.FormatTime(ticket.DepTime),
			ticket.Car, ticket.Seat, ticket.Amount))
	}
	return b.String()
}

func seatCell(name string, available bool) string {
	cell := fmt.Sprintf("%-9s", clip(orDash(name), 8))
	if available {
		return availStyle.Render(cell)
	}
	return soldOutStyle.Render(cell)
}

func clip(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
