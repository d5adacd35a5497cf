package tuner

import "fmt"

const (
	notePlaceholder = "--"
	freqPlaceholder = "-- Hz"
)

// Display is the text shown for a reading.
type Display struct {
	Note      string
	Frequency string
	Cents     string

	// Reading is the displayed reading. Nil when the placeholder is shown.
	Reading *NoteReading
}

// SilentDisplay is shown when there is no signal.
var SilentDisplay = Display{
	Note:      notePlaceholder,
	Frequency: freqPlaceholder,
}

// FormatCents formats a cents deviation. In tune readings are shown without
// any text.
func FormatCents(cents int) string {
	switch {
	case cents > 0:
		return fmt.Sprintf("+%d cents", cents)
	case cents < 0:
		return fmt.Sprintf("%d cents", cents)
	default:
		return ""
	}
}

// DisplayFor returns the text shown for nr.
func DisplayFor(nr NoteReading) Display {
	return Display{
		Note:      nr.Name(),
		Frequency: fmt.Sprintf("%.2f Hz", nr.Frequency),
		Cents:     FormatCents(nr.Cents),
		Reading:   &nr,
	}
}
