package ui

import (
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ConfigureOutput picks the colour profile for stdout and reports whether
// output is styled. plain forces unstyled output, as do CI, NO_COLOR,
// DRIFTWATCH_PLAIN and TERM=dumb. Pipes are never styled.
func ConfigureOutput(plain bool) bool {
	styled := wantStyled(plain, os.Getenv) && isTerminal(os.Stdout)
	if styled {
		lipgloss.SetColorProfile(termenv.ColorProfile())
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return styled
}

func wantStyled(plain bool, getenv func(string) string) bool {
	if plain || getenv("NO_COLOR") != "" {
		return false
	}
	if truthy(getenv("CI")) || truthy(getenv("DRIFTWATCH_PLAIN")) {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(getenv("TERM")), "dumb")
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func truthy(v string) bool {
	return slices.Contains([]string{"1", "true", "yes", "on"}, strings.ToLower(strings.TrimSpace(v)))
}
