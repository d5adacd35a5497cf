package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/companyzero/chromatic/internal/audio"
	"github.com/companyzero/chromatic/tuner"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

// filterDevices returns the indexes of names that match query, best matches
// first. An empty query matches every name in list order.
func filterDevices(names []string, query string) []int {
	query = strings.TrimSpace(query)
	if query == "" {
		res := make([]int, len(names))
		for i := range names {
			res[i] = i
		}
		return res
	}

	matches := fuzzy.Find(query, names)
	res := make([]int, len(matches))
	for i, m := range matches {
		res[i] = m.Index
	}
	return res
}

// devicePicker is the window where the user chooses the capture device.
type devicePicker struct {
	as   *appState
	prev tunerWin

	input   textinput.Model
	spinner spinner.Model

	loading   bool
	selecting bool
	err       error

	devs    []audio.Device
	names   []string
	matches []int
	sel     int
}

func newDevicePicker(prev tunerWin) devicePicker {
	input := textinput.New()
	input.Prompt = "Filter: "
	input.Placeholder = "device name"
	input.Focus()

	return devicePicker{
		as:      prev.as,
		prev:    prev,
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Points)),
		loading: true,
	}
}

func (dp devicePicker) listDevices() tea.Msg {
	devs, err := dp.as.sup.CaptureDevices()
	return devicesListed{devs: devs, err: err}
}

func (dp devicePicker) Init() tea.Cmd {
	return tea.Batch(dp.listDevices, dp.spinner.Tick, textinput.Blink)
}

// preselect selects the device that best matches the active or the stored
// device name.
func (dp *devicePicker) preselect() {
	target := dp.as.store.SelectedDevice()
	if info, ok := dp.as.sup.Active(); ok {
		target = info.Device.Name
	}
	if target == "" {
		return
	}
	idx, ok := tuner.Resolve(target, dp.names)
	if !ok {
		return
	}
	for i, m := range dp.matches {
		if m == idx {
			dp.sel = i
			return
		}
	}
}

func (dp *devicePicker) refilter() {
	dp.matches = filterDevices(dp.names, dp.input.Value())
	if dp.sel >= len(dp.matches) {
		dp.sel = max(0, len(dp.matches)-1)
	}
}

func (dp devicePicker) selectDevice(name string) tea.Cmd {
	return func() tea.Msg {
		err := dp.as.selectDevice(name)
		return deviceSelected{name: name, err: err}
	}
}

// back returns to the tuner window, forwarding msg to it.
func (dp devicePicker) back(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg == nil {
		return dp.prev, nil
	}
	return dp.prev.Update(msg)
}

func (dp devicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m, cmd := maybeShutdown(dp.as, msg); m != nil {
		return m, cmd
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		dp.prev.winW, dp.prev.winH = msg.Width, msg.Height

	case devicesListed:
		dp.loading = false
		dp.err = msg.err
		dp.devs = msg.devs
		dp.names = make([]string, len(msg.devs))
		for i, dev := range msg.devs {
			dp.names[i] = dev.Name
		}
		dp.refilter()
		dp.preselect()

	case deviceSelected:
		return dp.back(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		switch {
		case msg.ID != dp.spinner.ID():
			// Keep the tuner window's spinner running.
			dp.prev, cmd = updateTunerWin(dp.prev, msg)
		case dp.loading || dp.selecting:
			dp.spinner, cmd = dp.spinner.Update(msg)
		}
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if dp.selecting {
			break
		}
		switch msg.String() {
		case "esc":
			return dp.back(nil)
		case "up":
			if dp.sel > 0 {
				dp.sel--
			}
		case "down":
			if dp.sel < len(dp.matches)-1 {
				dp.sel++
			}
		case "enter":
			if dp.loading || len(dp.matches) == 0 {
				break
			}
			dp.selecting = true
			name := dp.names[dp.matches[dp.sel]]
			cmds = append(cmds, dp.selectDevice(name), dp.spinner.Tick)
		default:
			var cmd tea.Cmd
			dp.input, cmd = dp.input.Update(msg)
			cmds = append(cmds, cmd)
			dp.refilter()
		}

	default:
		// Keep the tuner window up to date while picking.
		var cmd tea.Cmd
		dp.prev, cmd = updateTunerWin(dp.prev, msg)
		cmds = append(cmds, cmd)

		dp.input, cmd = dp.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return dp, batchCmds(cmds)
}

// updateTunerWin forwards msg to tw, keeping the result as a tunerWin.
func updateTunerWin(tw tunerWin, msg tea.Msg) (tunerWin, tea.Cmd) {
	m, cmd := tw.Update(msg)
	if newTW, ok := m.(tunerWin); ok {
		return newTW, cmd
	}
	return tw, cmd
}

func (dp devicePicker) View() string {
	styles := dp.as.styles
	winW, winH := dp.prev.winW, dp.prev.winH

	var b strings.Builder
	b.WriteString(styles.header.Render(runewidth.FillRight("Select capture device", winW)))
	b.WriteString("\n\n")
	b.WriteString(dp.input.View())
	b.WriteString("\n\n")
	nbLines := 4

	switch {
	case dp.loading:
		b.WriteString(dp.spinner.View() + " Listing devices")
		nbLines++
	case dp.err != nil:
		b.WriteString(renderPF(styles.err)("Unable to list devices: %v", dp.err))
		nbLines++
	case len(dp.matches) == 0:
		b.WriteString(renderPF(styles.help)("No devices match %q", dp.input.Value()))
		nbLines++
	default:
		maxRows := max(1, winH-nbLines-3)
		first := max(0, dp.sel-maxRows+1)
		for i := first; i < len(dp.matches) && i < first+maxRows; i++ {
			dev := dp.devs[dp.matches[i]]
			def := " "
			if dev.IsDefault {
				def = "*"
			}
			line := fmt.Sprintf("%s %s (%d ch, %d Hz)", def, dev.Name,
				dev.MaxInputChannels, dev.DefaultSampleRate)
			line = runewidth.Truncate(line, max(0, winW-2), "…")
			if i == dp.sel {
				b.WriteString(styles.selected.Render("> " + line))
			} else {
				b.WriteString(styles.blurred.Render("  " + line))
			}
			b.WriteString("\n")
			nbLines++
		}
	}

	if dp.selecting {
		b.WriteString(fmt.Sprintf("\n%s Opening device", dp.spinner.View()))
		nbLines += 2
	}

	b.WriteString(blankLines(winH - nbLines - 1))
	b.WriteString("\n")
	b.WriteString(styles.help.Render("enter select  esc back  up/down move"))
	return b.String()
}
