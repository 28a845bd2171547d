package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/metcalfc/commonplace/internal/book"
	"github.com/metcalfc/commonplace/internal/reader"
)

const gutter = 4

var (
	folioStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	turningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)
)

// Page draws one slot as a column width cells wide. With a positive height
// the column is cut or padded to exactly height lines, the last of which is
// the page number.
func Page(slot reader.Slot, width, height int) string {
	body := ""
	if !slot.Empty {
		body = Text(slot.Fragment.HTML)
	}
	lines := strings.Split(lipgloss.NewStyle().Width(width).Render(body), "\n")
	if height <= 0 {
		return strings.Join(lines, "\n")
	}

	bodyHeight := height - 1
	if len(lines) > bodyHeight {
		lines = lines[:bodyHeight]
	}
	for len(lines) < bodyHeight {
		lines = append(lines, "")
	}
	folio := ""
	if !slot.Empty && slot.Fragment.Kind != book.KindBlank {
		folio = folioStyle.Render(fmt.Sprint(slot.Ordinal + 1))
	}
	lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center, folio))
	return strings.Join(lines, "\n")
}

// ColumnWidth splits width between perView columns and the gutters between
// them.
func ColumnWidth(width, perView int) int {
	if perView < 1 {
		perView = 1
	}
	w := (width - gutter*(perView-1)) / perView
	if w < 10 {
		w = 10
	}
	return w
}

// Spread draws the slots side by side.
func Spread(slots []reader.Slot, width, height int) string {
	if len(slots) == 0 {
		return ""
	}
	colWidth := ColumnWidth(width, len(slots))
	gap := strings.Repeat(" ", gutter)

	parts := make([]string, 0, 2*len(slots)-1)
	for i, s := range slots {
		if i > 0 {
			parts = append(parts, gap)
		}
		parts = append(parts, Page(s, colWidth, height))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// Status is the line under the spread: "Spread 3/12", with the direction of
// a turn in progress.
func Status(spread, total int, st reader.State) string {
	s := fmt.Sprintf("Spread %d/%d", spread, total)
	if st.Transitioning {
		switch st.Direction {
		case reader.Forward:
			s += " " + turningStyle.Render("[turning →]")
		case reader.Backward:
			s += " " + turningStyle.Render("[← turning]")
		}
	}
	return statusStyle.Render(s)
}
