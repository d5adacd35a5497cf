package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/companyzero/chromatic/tuner"
	"github.com/decred/slog"
	"github.com/mattn/go-runewidth"
)

const (
	// shutdownPollInterval is how often the list of draining streams is
	// refreshed.
	shutdownPollInterval = 100 * time.Millisecond

	// crashExitTimeout is how long to wait for the program to process a
	// crash before killing it.
	crashExitTimeout = 3 * time.Second
)

type shutdownDone struct{}

type shutdownPoll struct{}

// shutdownWin is shown after a quit request while the tuner stops and the
// capture streams release their devices.
type shutdownWin struct {
	as      *appState
	err     error
	spinner spinner.Model
	streams []tuner.StreamInfo
	winW    int
}

func newShutdownWin(as *appState, err error, winW int) shutdownWin {
	return shutdownWin{
		as:      as,
		err:     err,
		spinner: spinner.New(spinner.WithSpinner(spinner.Line)),
		streams: as.sup.Streams(),
		winW:    winW,
	}
}

func (sw shutdownWin) Init() tea.Cmd {
	return tea.Batch(sw.waitShutdown, sw.spinner.Tick,
		emitAfter(shutdownPollInterval, shutdownPoll{}))
}

// waitShutdown stops the tuner, which stops the supervisor and waits for
// every stream to drain.
func (sw shutdownWin) waitShutdown() tea.Msg {
	sw.as.cancel()
	sw.as.wg.Wait()
	return shutdownDone{}
}

func (sw shutdownWin) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case shutdownDone:
		return sw, tea.Quit

	case shutdownPoll:
		sw.streams = sw.as.sup.Streams()
		return sw, emitAfter(shutdownPollInterval, shutdownPoll{})

	case spinner.TickMsg:
		var cmd tea.Cmd
		sw.spinner, cmd = sw.spinner.Update(msg)
		return sw, cmd

	case tea.WindowSizeMsg:
		sw.winW = msg.Width
	}
	return sw, nil
}

func (sw shutdownWin) View() string {
	return renderShutdown(sw.spinner.View(), sw.err, sw.streams, sw.winW)
}

// renderShutdown renders the shutdown progress. Quit requests are not shown
// as errors.
func renderShutdown(spin string, err error, streams []tuner.StreamInfo, winW int) string {
	var b strings.Builder
	if err != nil && !errors.Is(err, errQuitRequested) {
		fmt.Fprintf(&b, "Shutting down due to error: %v\n", err)
	}
	if len(streams) == 0 {
		fmt.Fprintf(&b, "%s Stopping tuner", spin)
		return b.String()
	}

	fmt.Fprintf(&b, "%s Closing audio streams", spin)
	for _, st := range streams {
		line := fmt.Sprintf("  stream %d  %s  %s", st.ID, st.State, st.Device.Name)
		if winW > 0 {
			line = runewidth.Truncate(line, winW, "…")
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func maybeShutdown(as *appState, msg tea.Msg) (tea.Model, tea.Cmd) {
	crash := isCrashMsg(msg)
	err := isQuitMsg(msg)
	if err == nil && !crash {
		return nil, nil
	}
	if crash {
		as.storeCrash()
	}

	sw := newShutdownWin(as, err, 0)
	return sw, sw.Init()
}

// listenToCrashSignals sends crashApp to p when SIGABRT or SIGQUIT is
// received. If p does not exit in time, every goroutine stack is logged and
// the program is killed.
func listenToCrashSignals(p *tea.Program, programDone <-chan struct{}, log slog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGABRT,
		syscall.SIGQUIT)
	defer stop()

	select {
	case <-ctx.Done():
		log.Warnf("Received abort signal")
	case <-programDone:
		return
	}
	go p.Send(crashApp{})

	select {
	case <-time.After(crashExitTimeout):
	case <-programDone:
		return
	}

	stack := string(allStack())
	log.Warnf("Program did not exit %s after crash, killing it", crashExitTimeout)
	log.Info(stack)
	p.Kill()
	panic(stack)
}
