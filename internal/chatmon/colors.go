package chatmon

import "github.com/charmbracelet/lipgloss"

// Color palette for the operator client. Kept intentionally small next
// to the teacher's full Turbo Pascal palette — this is a single scrolling
// feed, not a multi-pane editor.
var (
	colorTitle    = lipgloss.Color("14") // bright cyan
	colorBorder   = lipgloss.Color("8")  // dark gray
	colorSelf     = lipgloss.Color("10") // bright green
	colorPeer     = lipgloss.Color("7")  // light gray
	colorSystem   = lipgloss.Color("11") // yellow
	colorError    = lipgloss.Color("9")  // bright red
	colorHelpText = lipgloss.Color("8")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorTitle).
			Bold(true)

	feedBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	selfMessageStyle = lipgloss.NewStyle().Foreground(colorSelf)
	peerMessageStyle = lipgloss.NewStyle().Foreground(colorPeer)
	systemStyle      = lipgloss.NewStyle().Foreground(colorSystem).Italic(true)
	errorStyle       = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	helpStyle        = lipgloss.NewStyle().Foreground(colorHelpText)

	inputPromptStyle = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
)
