package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette is the set of named styles the Reporter renders status lines
// with. It is a value: copies never affect the Reporter that owns one.
type Palette struct {
	Header lipgloss.Style // phase announcement
	Pass   lipgloss.Style // passed assertion
	Fail   lipgloss.Style // failed assertion header
	Detail lipgloss.Style // arguments and source of a failed assertion
}

// ANSI colors for each status, matching the classic bright terminal set.
const (
	colorHeader = lipgloss.Color("13") // bright magenta
	colorPass   = lipgloss.Color("10") // bright green
	colorFail   = lipgloss.Color("9")  // bright red
	colorDetail = lipgloss.Color("11") // bright yellow
)

// NewPalette builds the default palette for output written to w. The color
// profile is detected from w unless color is false, in which case every
// style renders plain text.
func NewPalette(w io.Writer, color bool) Palette {
	renderer := lipgloss.NewRenderer(w)
	if !color {
		renderer.SetColorProfile(termenv.Ascii)
	}
	return Palette{
		Header: renderer.NewStyle().Foreground(colorHeader),
		Pass:   renderer.NewStyle().Foreground(colorPass),
		Fail:   renderer.NewStyle().Foreground(colorFail),
		Detail: renderer.NewStyle().Foreground(colorDetail),
	}
}

// PlainPalette renders every status without escape sequences.
func PlainPalette() Palette {
	return NewPalette(io.Discard, false)
}
