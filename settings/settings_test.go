package settings

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/companyzero/chromatic/internal/assert"
	"github.com/companyzero/chromatic/internal/testutils"
	"github.com/companyzero/chromatic/tuner"
	"github.com/davecgh/go-spew/spew"
)

func writeFile(t testing.TB, fname, data string) {
	t.Helper()
	testutils.WriteFile(t, filepath.Dir(fname), filepath.Base(fname), data)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := testutils.TempTestDir(t, "settings")
	fname := filepath.Join(dir, DefaultFilename)
	writeFile(t, fname, `
[audio]
choosedevice = yes
device = USB Mic
buffersize = 4096
maxfrequency = 20000
estimator = YIN

[gauge]
show = no
hover = 1.5s
rest = -50
tick = 16ms

[display]
hang = 2s
`)

	s, err := Load(fname)
	assert.NilErr(t, err)
	want := &Settings{
		ChooseDevice: true,
		Device:       "USB Mic",
		BufferSize:   4096,
		MaxFrequency: 20000,
		Estimator:    "yin",
		ShowGauge:    false,
		Hover:        1500 * time.Millisecond,
		Rest:         -50,
		Tick:         16 * time.Millisecond,
		Hang:         2 * time.Second,
	}
	if *s != *want {
		t.Fatalf("unexpected settings: got %s want %s", spew.Sdump(s),
			spew.Sdump(want))
	}
}

// TestLoadDefaults asserts the default file loads as the default settings.
func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	dir := testutils.TempTestDir(t, "settings")
	fname := filepath.Join(dir, DefaultFilename)
	assert.NilErr(t, WriteDefault(fname))
	assert.NonNilErr(t, WriteDefault(fname))

	s, err := Load(fname)
	assert.NilErr(t, err)
	assert.DeepEqual(t, s, New())

	// Missing sections keep the defaults.
	writeFile(t, fname, "[display]\nhang = 500ms\n")
	s, err = Load(fname)
	assert.NilErr(t, err)
	assert.DeepEqual(t, s.Hang, 500*time.Millisecond)
	assert.DeepEqual(t, s.BufferSize, tuner.DefaultBufferSize)
	assert.BoolIs(t, s.ShowGauge, true)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "bad bool", data: "[audio]\nchoosedevice = maybe\n"},
		{name: "bad int", data: "[audio]\nbuffersize = lots\n"},
		{name: "small buffer", data: "[audio]\nbuffersize = 16\n"},
		{name: "bad float", data: "[audio]\nmaxfrequency = high\n"},
		{name: "zero max frequency", data: "[audio]\nmaxfrequency = 0\n"},
		{name: "unknown estimator", data: "[audio]\nestimator = fft\n"},
		{name: "bad duration", data: "[gauge]\nhover = forever\n"},
		{name: "zero tick", data: "[gauge]\ntick = 0s\n"},
		{name: "negative hang", data: "[display]\nhang = -1s\n"},
	}

	dir := testutils.TempTestDir(t, "settings")
	for i, tc := range tests {
		fname := filepath.Join(dir, tc.name+".ini")
		writeFile(t, fname, tc.data)
		_, err := Load(fname)
		if err == nil {
			t.Fatalf("case %d (%s): expected error", i, tc.name)
		}
	}

	_, err := Load(filepath.Join(dir, "missing.ini"))
	assert.NonNilErr(t, err)
}

func TestTunerOptions(t *testing.T) {
	t.Parallel()

	s := New()
	opts := s.TunerOptions("USB Mic")
	assert.DeepEqual(t, opts.Device, tuner.DeviceOptions{Name: "USB Mic"})
	assert.DeepEqual(t, opts.BufferSize, tuner.DefaultBufferSize)
	assert.DeepEqual(t, opts.Hang, tuner.DefaultHangDuration)

	// A configured device wins over the state file.
	s.ChooseDevice = true
	s.Device = "Scarlett"
	opts = s.TunerOptions("USB Mic")
	assert.DeepEqual(t, opts.Device, tuner.DeviceOptions{Manual: true, Name: "Scarlett"})
}

func TestStateStore(t *testing.T) {
	t.Parallel()

	dir := testutils.TempTestDir(t, "state")
	fname := filepath.Join(dir, StateFilename)
	log := testutils.TestLoggerSys(t, "SETT")

	s, err := OpenStateStore(fname, log)
	assert.NilErr(t, err)
	assert.DeepEqual(t, s.SelectedDevice(), "")

	assert.NilErr(t, s.SaveSelectedDevice("USB Mic"))
	assert.DeepEqual(t, s.SelectedDevice(), "USB Mic")

	s2, err := OpenStateStore(fname, log)
	assert.NilErr(t, err)
	assert.DeepEqual(t, s2.SelectedDevice(), "USB Mic")
	if s2.state.Updated.IsZero() {
		t.Fatal("updated time not stored")
	}

	writeFile(t, fname, "{not json")
	_, err = OpenStateStore(fname, log)
	assert.NonNilErr(t, err)
}

// TestWatcher asserts the watcher emits the new settings after the file is
// modified.
func TestWatcher(t *testing.T) {
	t.Parallel()

	dir := testutils.TempTestDir(t, "watcher")
	fname := filepath.Join(dir, DefaultFilename)
	writeFile(t, fname, "[display]\nhang = 1s\n")

	w := NewWatcher(fname, testutils.TestLoggerSys(t, "SETT"))
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, assert.ChanWritten(t, runErr), context.Canceled)
	})

	// Writes to other files in the dir are ignored. Retry the write
	// until the watcher has been installed.
	writeFile(t, filepath.Join(dir, "other.txt"), "x")
	var s *Settings
	for i := 0; s == nil; i++ {
		if i > 20 {
			t.Fatal("timeout waiting for settings reload")
		}
		writeFile(t, fname, "[display]\nhang = 2s\n")
		select {
		case s = <-w.Updates():
		case <-time.After(500 * time.Millisecond):
		}
	}
	assert.DeepEqual(t, s.Hang, 2*time.Second)

	// Invalid files are not emitted.
	writeFile(t, fname, "[display]\nhang = never\n")
	assert.RecvChanNotWritten(t, w.Updates(), 500*time.Millisecond)
}
