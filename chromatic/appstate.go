package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/companyzero/chromatic/internal/audio"
	"github.com/companyzero/chromatic/mixer"
	"github.com/companyzero/chromatic/pitch"
	"github.com/companyzero/chromatic/settings"
	"github.com/companyzero/chromatic/tuner"
	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"
)

// appState holds the components shared by every window of the app.
type appState struct {
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup

	cfg     *config
	log     slog.Logger
	logBknd *logBackend
	styles  *theme
	sendMsg func(tea.Msg)

	backend  *audio.Backend
	store    *settings.StateStore
	settings *settings.Settings
	stats    *tuner.Stats
	sup      *tuner.Supervisor
	tuner    *tuner.Tuner
	watcher  *settings.Watcher
	updates  chan tuner.Options

	// selected is the device name stored in the state file at startup or
	// later picked by the user. It is used on settings reloads, so that a
	// reload does not pick up names the mixer fallback persisted.
	selectedMtx sync.Mutex
	selected    string

	// needlePos holds the bits of the latest needle position and
	// needlePending is set while a needleMoved msg is in flight.
	needlePos     atomic.Uint64
	needlePending atomic.Bool
	noticeID      atomic.Uint64

	exitMtx    sync.Mutex
	crashStack []byte
	runErr     error
}

func newAppState(sendMsg func(tea.Msg), logBknd *logBackend, cfg *config) (*appState, error) {
	styles, err := newTheme(cfg)
	if err != nil {
		return nil, err
	}

	if err := settings.WriteDefault(cfg.SettingsFile); err == nil {
		logBknd.logger("SETT").Infof("Created settings file %s", cfg.SettingsFile)
	}
	s, err := settings.Load(cfg.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to load settings: %v", err)
	}

	store, err := settings.OpenStateStore(cfg.StateFile, logBknd.logger("SETT"))
	if err != nil {
		return nil, fmt.Errorf("unable to load device state: %v", err)
	}

	newEstimator, err := pitch.ByName(s.Estimator)
	if err != nil {
		return nil, err
	}

	backend, err := audio.NewBackend(logBknd.logger("AUDI"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tuner.ErrBackendUnavailable, err)
	}

	stats := tuner.NewStats()
	sup := tuner.NewSupervisor(tuner.SupervisorConfig{
		Backend: backend,
		NewEstimator: newEstimator,
		Mixer:        mixer.NewPulse(logBknd.logger("MIXR")),
		Store:        store,
		BufferSize:   s.BufferSize,
		MaxFrequency: s.MaxFrequency,
		Log:          logBknd.logger("SUPV"),
		StreamLog:    logBknd.logger("STRM"),
		Stats:        stats,
	})

	ctx, cancel := context.WithCancel(context.Background())
	as := &appState{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		log:      logBknd.logger("TUNR"),
		logBknd:  logBknd,
		styles:   styles,
		sendMsg:  sendMsg,
		backend:  backend,
		store:    store,
		settings: s,
		stats:    stats,
		sup:      sup,
		watcher:  settings.NewWatcher(cfg.SettingsFile, logBknd.logger("SETT")),
		updates:  make(chan tuner.Options),
		selected: store.SelectedDevice(),
	}
	as.tuner = tuner.New(tuner.Config{
		Supervisor: sup,
		Sink:       (*tuiSink)(as),
		Options:    s.TunerOptions(as.selected),
		Updates:    as.updates,
		Log:        as.log,
		GaugeLog:   logBknd.logger("GAUG"),
		Stats:      stats,
	})

	return as, nil
}

// tuiSink forwards tuner output to the UI.
type tuiSink appState

func (ts *tuiSink) NoteChanged(d tuner.Display) {
	ts.sendMsg(noteChanged{display: d})
}

func (ts *tuiSink) NeedleMoved(pos float64) {
	ts.needlePos.Store(math.Float64bits(pos))
	if ts.needlePending.CompareAndSwap(false, true) {
		ts.sendMsg(needleMoved{})
	}
}

func (ts *tuiSink) Notice(err error) {
	ts.sendMsg(noticeMsg{text: err.Error()})
}

// needle returns the latest needle position and allows a new needleMoved
// msg to be sent.
func (as *appState) needle() float64 {
	as.needlePending.Store(false)
	return math.Float64frombits(as.needlePos.Load())
}

// notice sends a notice to the UI. It is used as the error callback of the
// log backend.
func (as *appState) notice(line string) {
	if as.sendMsg != nil {
		as.sendMsg(noticeMsg{text: line})
	}
}

func (as *appState) tunerOptions(s *settings.Settings) tuner.Options {
	as.selectedMtx.Lock()
	defer as.selectedMtx.Unlock()
	return s.TunerOptions(as.selected)
}

// selectDevice switches to the device picked by the user. The name is kept
// for later settings reloads when the supervisor saved it, meaning it
// resolved to a capture device.
func (as *appState) selectDevice(name string) error {
	err := as.sup.SelectDevice(name)
	if err == nil && as.store.SelectedDevice() == name {
		as.selectedMtx.Lock()
		as.selected = name
		as.selectedMtx.Unlock()
	}
	return err
}

// forwardSettings converts reloaded settings into tuner options.
func (as *appState) forwardSettings(ctx context.Context) error {
	for {
		select {
		case s := <-as.watcher.Updates():
			select {
			case as.updates <- as.tunerOptions(s):
			case <-ctx.Done():
				return ctx.Err()
			}
			as.sendMsg(settingsChanged{showGauge: s.ShowGauge})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (as *appState) run() error {
	g, gctx := errgroup.WithContext(as.ctx)
	g.Go(func() error { return as.tuner.Run(gctx) })
	g.Go(func() error { return as.watcher.Run(gctx) })
	g.Go(func() error { return as.forwardSettings(gctx) })
	g.Go(func() error {
		return as.stats.RunReportStatsLoop(gctx, as.cfg.StatsInterval,
			as.logBknd.logger("STAT"))
	})
	if as.cfg.MetricsListen != "" {
		g.Go(func() error {
			return runPrometheusListener(gctx, as.cfg.MetricsListen,
				as.stats.Registry(), as.logBknd.logger("PROM"))
		})
	}
	return g.Wait()
}

// start runs the tuner and its supporting services. The UI is notified if
// they stop with an error.
func (as *appState) start() {
	as.wg.Add(1)
	go func() {
		defer as.wg.Done()
		err := as.run()
		if err := as.backend.Close(); err != nil {
			as.log.Warnf("Unable to close audio backend: %v", err)
		}
		if errors.Is(err, context.Canceled) {
			err = nil
		}

		as.exitMtx.Lock()
		as.runErr = err
		as.exitMtx.Unlock()

		if err != nil {
			as.log.Errorf("App stopped due to error: %v", err)
			as.sendMsg(appStateErr{err: err})
		}
	}()
}

func (as *appState) storeCrash() {
	as.exitMtx.Lock()
	as.crashStack = allStack()
	as.exitMtx.Unlock()
}

func (as *appState) getExitState() (string, error) {
	as.exitMtx.Lock()
	defer as.exitMtx.Unlock()
	return string(as.crashStack), as.runErr
}
