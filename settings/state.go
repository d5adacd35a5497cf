package settings

import (
	"errors"
	"sync"
	"time"

	"github.com/companyzero/chromatic/internal/jsonfile"
	"github.com/decred/slog"
)

// State is the content of the device state file.
type State struct {
	SelectedDevice string    `json:"selected_device"`
	Updated        time.Time `json:"updated"`
}

// StateStore persists the last device selected by name.
type StateStore struct {
	fname string
	log   slog.Logger

	mtx   sync.Mutex
	state State
}

// OpenStateStore loads the state file. A missing file is not an error.
func OpenStateStore(fname string, log slog.Logger) (*StateStore, error) {
	if log == nil {
		log = slog.Disabled
	}
	s := &StateStore{fname: fname, log: log}
	err := jsonfile.Read(fname, &s.state)
	if err != nil && !errors.Is(err, jsonfile.ErrNotFound) {
		return nil, err
	}
	return s, nil
}

// SelectedDevice is the name of the last selected device.
func (s *StateStore) SelectedDevice() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state.SelectedDevice
}

// SaveSelectedDevice updates the state file with a new selected device.
func (s *StateStore) SaveSelectedDevice(name string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if name == s.state.SelectedDevice {
		return nil
	}
	newState := State{SelectedDevice: name, Updated: time.Now().UTC()}
	if err := jsonfile.Write(s.fname, newState, s.log); err != nil {
		return err
	}
	s.state = newState
	s.log.Debugf("Saved selected device %q", name)
	return nil
}
