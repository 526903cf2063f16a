package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/predictor"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f87"),
}

type styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Dim   lipgloss.Style
	Error lipgloss.Style
	Box   lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Foreground(t.Dim).Width(12),
		Value: lipgloss.NewStyle().Bold(true),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
		Error: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Primary).
			Padding(0, 1),
	}
}

var style = newStyles(DefaultTheme)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// probabilityBar renders p as a fixed-width bar
func probabilityBar(p float64) string {
	const width = 20
	n := min(max(int(p*width+0.5), 0), width)
	return style.Title.Render(strings.Repeat("█", n)) + style.Dim.Render(strings.Repeat("░", width-n))
}

func renderResult(title string, r *predictor.Result) string {
	lines := []string{
		style.Title.Render(title),
		"",
		style.Label.Render("label") + style.Value.Render(r.Label),
		style.Label.Render("confidence") + fmt.Sprintf("%.4f", r.Confidence),
		"",
	}

	labels := make([]string, 0, len(r.Probabilities))
	for label := range r.Probabilities {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	for _, label := range labels {
		p := r.Probabilities[label]
		lines = append(lines, style.Label.Render(label)+probabilityBar(p)+fmt.Sprintf(" %.4f", p))
	}

	lines = append(lines, "", style.Dim.Render(fmt.Sprintf("source %s, bundle %s", r.Source, r.BundleVersion)))
	return style.Box.Render(strings.Join(lines, "\n"))
}

func renderError(input string, err error) string {
	return style.Error.Render("✗ "+input) + " " + style.Dim.Render(err.Error())
}

func renderFeatures(title string, v features.Vector) string {
	lines := []string{style.Title.Render(title), ""}
	for i, name := range features.Names() {
		lines = append(lines, style.Label.Render(name)+fmt.Sprintf("%.6f", v[i]))
	}
	return style.Box.Render(strings.Join(lines, "\n"))
}
