package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/companyzero/chromatic/tuner"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

const (
	// scaleCents is the absolute value of the scale limits.
	scaleCents = 50

	// scaleMajorTick is the distance in cents between major ticks.
	scaleMajorTick = 10

	minScaleWidth = 2*scaleCents/scaleMajorTick + 1
	maxScaleWidth = 101

	noticeTimeout = 10 * time.Second

	// inTuneCents is the largest deviation shown with the in tune style.
	inTuneCents = 5
)

// scaleColumn returns the column of the scale where the given cents value is
// drawn. Values outside the scale are drawn at its limits.
func scaleColumn(cents float64, width int) int {
	cents = math.Max(-scaleCents, math.Min(scaleCents, cents))
	return int(math.Round((cents + scaleCents) / (2 * scaleCents) * float64(width-1)))
}

// scaleWidth returns the width of the needle scale for a window of the given
// width. The width is chosen so that major ticks fall on exact columns.
func scaleWidth(winW int) int {
	const majors = 2 * scaleCents / scaleMajorTick
	w := min(winW-4, maxScaleWidth)
	w = (w-1)/majors*majors + 1
	return max(w, minScaleWidth)
}

// renderNeedle renders the needle at pos over a -50..+50 cents scale of the
// given width. It returns the needle, scale and label lines.
func renderNeedle(pos float64, width int) (needle, scale, labels string) {
	needleLine := []rune(strings.Repeat(" ", width))
	needleLine[scaleColumn(pos, width)] = '┃'

	scaleLine := []rune(strings.Repeat("─", width))
	for c := -scaleCents; c <= scaleCents; c += scaleMajorTick {
		scaleLine[scaleColumn(float64(c), width)] = '┼'
	}

	left, mid, right := fmt.Sprint(-scaleCents), "0", fmt.Sprintf("+%d", scaleCents)
	midCol := scaleColumn(0, width)
	labelLine := left
	labelLine += strings.Repeat(" ", max(0, midCol-runewidth.StringWidth(labelLine)))
	labelLine += mid
	labelLine += strings.Repeat(" ", max(0, width-runewidth.StringWidth(labelLine)-
		runewidth.StringWidth(right)))
	labelLine += right

	return string(needleLine), string(scaleLine), labelLine
}

// tunerWin is the main window of the app.
type tunerWin struct {
	as *appState

	display   tuner.Display
	needle    float64
	showGauge bool
	showLog   bool

	notice   string
	noticeID uint64

	spinner spinner.Model

	winW, winH int
}

func (tw tunerWin) Init() tea.Cmd {
	return tw.spinner.Tick
}

func (tw *tunerWin) setNotice(text string) tea.Cmd {
	tw.notice = text
	tw.noticeID = tw.as.noticeID.Add(1)
	return emitAfter(noticeTimeout, noticeExpired{id: tw.noticeID})
}

func (tw tunerWin) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m, cmd := maybeShutdown(tw.as, msg); m != nil {
		return m, cmd
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		tw.winW, tw.winH = msg.Width, msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return maybeShutdown(tw.as, requestShutdown{})
		case "m":
			tw.showGauge = !tw.showGauge
		case "l":
			tw.showLog = !tw.showLog
		case "d":
			dp := newDevicePicker(tw)
			return dp, dp.Init()
		}

	case noteChanged:
		tw.display = msg.display

	case needleMoved:
		tw.needle = tw.as.needle()

	case noticeMsg:
		cmds = append(cmds, tw.setNotice(msg.text))

	case noticeExpired:
		if msg.id == tw.noticeID {
			tw.notice = ""
		}

	case settingsChanged:
		tw.showGauge = msg.showGauge

	case deviceSelected:
		if msg.err != nil {
			cmds = append(cmds, tw.setNotice(msg.err.Error()))
		}

	case spinner.TickMsg:
		if msg.ID != tw.spinner.ID() {
			break
		}

		// Only keep spinning while there is no active stream.
		if _, ok := tw.as.sup.Active(); !ok {
			var cmd tea.Cmd
			tw.spinner, cmd = tw.spinner.Update(msg)
			cmds = append(cmds, cmd)
		} else {
			cmds = append(cmds, emitAfter(time.Second, tw.spinner.Tick()))
		}
	}

	return tw, batchCmds(cmds)
}

func (tw tunerWin) headerView() string {
	styles := tw.as.styles
	var title string
	if info, ok := tw.as.sup.Active(); ok {
		title = fmt.Sprintf("chromatic - %s @ %d Hz", info.Device.Name,
			info.SampleRate)
	} else {
		title = fmt.Sprintf("chromatic - %s opening device", tw.spinner.View())
	}
	title = runewidth.Truncate(title, tw.winW, "…")
	return styles.header.Render(runewidth.FillRight(title, tw.winW))
}

func (tw tunerWin) readingView() string {
	styles := tw.as.styles
	d := tw.display

	centsStyle := styles.offTune
	if d.Reading != nil && abs(d.Reading.Cents) <= inTuneCents {
		centsStyle = styles.inTune
	}
	note := styles.note.Inherit(centsStyle).Render(d.Note)
	if d.Reading == nil {
		note = styles.note.Render(d.Note)
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		note,
		lipgloss.JoinVertical(lipgloss.Left,
			styles.freq.Render(d.Frequency),
			centsStyle.Render(d.Cents),
		),
	)
}

func (tw tunerWin) gaugeView() string {
	styles := tw.as.styles
	needle, scale, labels := renderNeedle(tw.needle, scaleWidth(tw.winW))
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.needle.Render(needle),
		styles.scale.Render(scale),
		styles.scale.Render(labels),
	)
}

func (tw tunerWin) footerView() string {
	styles := tw.as.styles
	help := "q quit  d device  m gauge  l log"
	if tw.notice != "" {
		return styles.err.Render(runewidth.Truncate(tw.notice, tw.winW, "…"))
	}
	return styles.footer.Render(runewidth.FillRight(help, tw.winW))
}

func (tw tunerWin) View() string {
	if tw.winW == 0 {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(tw.headerView())
	b.WriteString("\n\n")

	body := tw.readingView()
	if tw.showGauge {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", tw.gaugeView())
	}
	body = lipgloss.NewStyle().PaddingLeft(2).Render(body)
	b.WriteString(body)
	nbLines := 2 + lipgloss.Height(body)

	if tw.showLog {
		avail := tw.winH - nbLines - 3
		if avail > 0 {
			b.WriteString("\n\n")
			nbLines += 2
			lines := tw.as.logBknd.lastLogLines(avail)
			logText := wordwrap.String(strings.Join(lines, ""), tw.winW)
			logLines := strings.Split(strings.TrimRight(logText, "\n"), "\n")
			if len(logLines) > avail {
				logLines = logLines[len(logLines)-avail:]
			}
			b.WriteString(tw.as.styles.logLine.Render(strings.Join(logLines, "\n")))
			nbLines += len(logLines) - 1
		}
	}

	b.WriteString(blankLines(tw.winH - nbLines - 1))
	b.WriteString("\n")
	b.WriteString(tw.footerView())
	return b.String()
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func newTunerWin(as *appState) tunerWin {
	return tunerWin{
		as:        as,
		display:   tuner.SilentDisplay,
		needle:    float64(as.settings.Rest),
		showGauge: as.settings.ShowGauge,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Points)),
	}
}
