package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/artwork/internal/domain"
	"github.com/mmcdole/artwork/internal/tui/styles"
)

// Chrome lines around the list: header, filter line, footer
const chromeHeight = 3

const statusWidth = 16

// View renders the screen
func (m Model) View() string {
	var body string
	if m.State == StateDetail {
		body = m.renderDetail()
	} else {
		body = m.renderList()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderFooter(),
	)
}

func (m Model) listHeight() int {
	if m.Height <= 0 {
		return len(m.rows)
	}
	return max(1, m.Height-chromeHeight)
}

func (m Model) renderHeader() string {
	mode := m.loader.Mode()

	var badge string
	switch mode.(type) {
	case domain.IdleMode:
		badge = styles.DimBadgeStyle.Render("PAUSED")
	case domain.DetailMode:
		badge = styles.BadgeStyle.Render("DETAIL")
	default:
		badge = styles.BadgeStyle.Render("LIST")
	}

	loaded := 0
	for _, ref := range m.refs {
		if _, ok := m.images[ref]; ok {
			loaded++
		}
	}
	counts := styles.SubtitleStyle.Render(fmt.Sprintf(" %d/%d loaded", loaded, len(m.refs)))
	return badge + counts
}

func (m Model) renderList() string {
	var lines []string

	if m.State == StateFiltering || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
	} else {
		lines = append(lines, "")
	}

	if len(m.rows) == 0 {
		lines = append(lines, styles.DimStyle.Render("  no matching references"))
		return strings.Join(lines, "\n")
	}

	_, listing := m.loader.Mode().(domain.ListMode)
	width := max(20, m.Width)
	refWidth := max(8, width-statusWidth-4)

	end := min(len(m.rows), m.offset+m.listHeight())
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		ref := m.refs[r.Index]
		selected := i == m.cursor

		base := styles.NormalItemStyle
		if selected {
			base = styles.SelectedItemStyle
		}

		var status string
		if img := m.images[ref]; img != nil {
			status = styles.SuccessStyle.Render(fmt.Sprintf("%dx%d %s", img.Width(), img.Height(), img.Format))
		} else if listing {
			status = m.spinner.View()
		} else {
			status = styles.DimStyle.Render("·")
		}

		name := ref
		if lipgloss.Width(name) > refWidth {
			// Highlight offsets no longer line up after truncation
			name = styles.Truncate(name, refWidth)
			r.MatchedIndexes = nil
		}
		text := styles.HighlightMatches(name, r.MatchedIndexes, base)
		pad := base.Render(strings.Repeat(" ", max(0, refWidth-lipgloss.Width(name))))

		cursor := "  "
		if selected {
			cursor = styles.AccentStyle.Render("> ")
		}
		lines = append(lines, cursor+text+pad+"  "+status)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail() string {
	ref := m.detailRef
	img := m.image(ref)

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(styles.TitleStyle.Render(ref))
	sb.WriteString("\n")

	if img == nil {
		sb.WriteString(m.spinner.View() + styles.DimStyle.Render(" loading"))
		return sb.String()
	}

	info := fmt.Sprintf("%dx%d %s, %d bytes", img.Width(), img.Height(), img.Format, len(img.Data))
	sb.WriteString(styles.SubtitleStyle.Render(info))
	sb.WriteString("\n\n")

	cols := max(10, m.Width-4)
	rows := max(4, m.Height-chromeHeight-5)
	preview := renderPreview(img.Pixels, cols, rows)
	sb.WriteString(styles.InactiveBorder.Render(preview))
	return sb.String()
}

func (m Model) renderFooter() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
