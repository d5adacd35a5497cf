package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type theme struct {
	header   lipgloss.Style
	footer   lipgloss.Style
	note     lipgloss.Style
	freq     lipgloss.Style
	inTune   lipgloss.Style
	offTune  lipgloss.Style
	scale    lipgloss.Style
	needle   lipgloss.Style
	focused  lipgloss.Style
	blurred  lipgloss.Style
	help     lipgloss.Style
	logLine  lipgloss.Style
	err      lipgloss.Style
	noStyle  lipgloss.Style
	selected lipgloss.Style
}

func textToColor(in string) (lipgloss.Color, error) {
	var c lipgloss.Color
	switch strings.ToLower(in) {
	case "na":
	case "black":
		c = "0"
	case "red":
		c = "1"
	case "green":
		c = "2"
	case "yellow":
		c = "3"
	case "blue":
		c = "4"
	case "magenta":
		c = "5"
	case "cyan":
		c = "6"
	case "white":
		c = "7"
	default:
		return c, fmt.Errorf("invalid color: %v", in)
	}
	return c, nil
}

// colorDefnToLGStyle converts a color definition used in the config files to a
// lipgloss style.
func colorDefnToLGStyle(color string) (lipgloss.Style, error) {
	s := strings.Split(color, ":")
	style := lipgloss.NewStyle()
	if len(s) != 3 {
		return style, fmt.Errorf("invalid color format: " +
			"attribute:foreground:background")
	}

	for _, k := range strings.Split(strings.ToLower(s[0]), ",") {
		switch k {
		case "":
		case "bold":
			style = style.Bold(true)
		case "underline":
			style = style.Underline(true)
		case "reverse":
			style = style.Reverse(true)
		default:
			return style, fmt.Errorf("invalid attribute: %v", k)
		}
	}

	fg, err := textToColor(s[1])
	if err != nil {
		return style, err
	}
	if fg != "" {
		style = style.Foreground(fg)
	}

	bg, err := textToColor(s[2])
	if err != nil {
		return style, err
	}
	if bg != "" {
		style = style.Background(bg)
	}

	return style, nil
}

func newTheme(args *config) (*theme, error) {
	var inTune, offTune lipgloss.Style
	var err error

	if args != nil {
		inTune, err = colorDefnToLGStyle(args.InTuneColor)
		if err != nil {
			return nil, fmt.Errorf("intunecolor: %v", err)
		}
		offTune, err = colorDefnToLGStyle(args.OffTuneColor)
		if err != nil {
			return nil, fmt.Errorf("offtunecolor: %v", err)
		}
	} else {
		inTune = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
		offTune = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	}

	return &theme{
		header: lipgloss.NewStyle().
			Bold(false).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#000044")),

		footer: lipgloss.NewStyle().
			Bold(false).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#000044")),

		note:    lipgloss.NewStyle().Bold(true).Padding(0, 2),
		freq:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		inTune:  inTune,
		offTune: offTune,

		scale:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		needle: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),

		focused:  lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		blurred:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		selected: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		logLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
		noStyle:  lipgloss.NewStyle(),
	}, nil
}

// renderPF captures `style` and returns a new printf-like function that uses
// style to render the string.
func renderPF(style lipgloss.Style) func(string, ...interface{}) string {
	return func(format string, args ...interface{}) string {
		return style.Render(fmt.Sprintf(format, args...))
	}
}
