package main

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/companyzero/chromatic/internal/audio"
	"github.com/companyzero/chromatic/tuner"
)

var errQuitRequested = errors.New("quit requested")

type requestShutdown struct{}

type crashApp struct{}

// appStateErr is sent when the app state stopped running due to an error.
type appStateErr struct {
	err error
}

// noteChanged is sent when the displayed reading changes.
type noteChanged struct {
	display tuner.Display
}

// needleMoved is sent when the needle has a new position. Positions are
// coalesced, so the latest one must be read from the appState.
type needleMoved struct{}

type noticeMsg struct {
	text string
}

type noticeExpired struct {
	id uint64
}

type settingsChanged struct {
	showGauge bool
}

type devicesListed struct {
	devs []audio.Device
	err  error
}

type deviceSelected struct {
	name string
	err  error
}

// isQuitMsg returns non-nil if the app should quit in response to msg.
func isQuitMsg(msg tea.Msg) error {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		k := msg.String()
		if k == "ctrl+q" || k == "ctrl+c" {
			return errQuitRequested
		}
	case requestShutdown:
		return errQuitRequested
	case appStateErr:
		return msg.err
	}
	return nil
}

// isCrashMsg returns true if the app should quit with a full goroutine stack
// trace as a response to the given msg.
func isCrashMsg(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+\\" {
			return true
		}
	case crashApp:
		return true
	}
	return false
}
