package setup

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle    = lipgloss.NewStyle().Faint(true)
)

// View renders the form state for the terminal. When a key is active it
// shows a success indicator and the reset action; otherwise the masked
// input, the submit affordance, and the error region when set.
func (f *Form) View() string {
	var b strings.Builder

	if f.initialized {
		b.WriteString(successStyle.Render("✓ API key configured"))
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("Run 'forge auth reset' to remove it."))
		return b.String()
	}

	b.WriteString("API key: ")
	b.WriteString(MaskKey(f.input))
	b.WriteString("\n")
	if f.CanSubmit() {
		b.WriteString(hintStyle.Render("Press enter to submit."))
	} else {
		b.WriteString(hintStyle.Render("Enter a key to continue."))
	}
	if f.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(f.errMsg))
	}
	return b.String()
}

// MaskKey replaces every rune of key with a bullet.
func MaskKey(key string) string {
	return strings.Repeat("•", len([]rune(key)))
}
