package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Amber     = lipgloss.Color("#E5A00D")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	White     = lipgloss.Color("#F9FAFB")
	Green     = lipgloss.Color("#10B981")
	Red       = lipgloss.Color("#EF4444")
	Blue      = lipgloss.Color("#3B82F6")
)

// Accent is the highlight color of the active theme.
var Accent = Amber

// Text styles, rebuilt by ApplyTheme.
var (
	TitleStyle          lipgloss.Style
	SubtitleStyle       lipgloss.Style
	DimStyle            lipgloss.Style
	AccentStyle         lipgloss.Style
	ErrorStyle          lipgloss.Style
	WarnStyle           lipgloss.Style
	SuccessStyle        lipgloss.Style
	SpinnerStyle        lipgloss.Style
	PanelStyle          lipgloss.Style
	MatchHighlightStyle lipgloss.Style
	ProgressFullStyle   lipgloss.Style
	ProgressEmptyStyle  lipgloss.Style
)

// Step markers
const (
	DoneChar    = "✓"
	FailedChar  = "✗"
	PendingChar = "·"
)

func init() {
	ApplyTheme("")
}

// ApplyTheme switches the accent color. Known themes are "default", "blue"
// and "mono"; anything else falls back to default.
func ApplyTheme(name string) {
	switch name {
	case "blue":
		Accent = Blue
	case "mono":
		Accent = LightGray
	default:
		Accent = Amber
	}

	TitleStyle = lipgloss.NewStyle().Foreground(White).Bold(true)
	SubtitleStyle = lipgloss.NewStyle().Foreground(LightGray)
	DimStyle = lipgloss.NewStyle().Foreground(DimGray)
	AccentStyle = lipgloss.NewStyle().Foreground(Accent)
	ErrorStyle = lipgloss.NewStyle().Foreground(Red)
	WarnStyle = lipgloss.NewStyle().Foreground(Amber)
	SuccessStyle = lipgloss.NewStyle().Foreground(Green)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Accent)
	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Accent).
		Padding(0, 1)
	MatchHighlightStyle = lipgloss.NewStyle().Foreground(Accent).Bold(true)
	ProgressFullStyle = lipgloss.NewStyle().Foreground(Accent)
	ProgressEmptyStyle = lipgloss.NewStyle().Foreground(DimGray)
}

// Truncate truncates a string to the given width with ellipsis
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

// RenderProgressBar renders fraction (0..1) as a bar of width cells.
func RenderProgressBar(fraction float64, width int) string {
	if width < 3 {
		return ""
	}
	filled := int(float64(width) * fraction)
	filled = max(0, min(filled, width))

	var b strings.Builder
	b.WriteString(ProgressFullStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(ProgressEmptyStyle.Render(strings.Repeat("░", width-filled)))
	return b.String()
}

// HighlightMatches renders s with the runes starting at the byte offsets in
// indexes emphasized.
func HighlightMatches(s string, indexes []int) string {
	if len(indexes) == 0 {
		return s
	}
	hit := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		hit[i] = true
	}

	var b strings.Builder
	for i, r := range s {
		if hit[i] {
			b.WriteString(MatchHighlightStyle.Render(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
