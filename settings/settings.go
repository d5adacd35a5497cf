// Package settings loads the tuner settings file and the device state file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/companyzero/chromatic/gauge"
	"github.com/companyzero/chromatic/pitch"
	"github.com/companyzero/chromatic/tuner"
	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
	strduration "github.com/xhit/go-str2duration/v2"
)

const (
	// DefaultFilename is the name of the settings file inside the app
	// data dir.
	DefaultFilename = "tuner.ini"

	// StateFilename is the name of the device state file inside the app
	// data dir.
	StateFilename = "state.json"

	minBufferSize = 256
)

// Settings is the collection of all tuner settings.
type Settings struct {
	// audio section
	ChooseDevice bool    // use Device instead of the running input
	Device       string  // device name to use when ChooseDevice is set
	BufferSize   int     // frames per estimate
	MaxFrequency float64 // estimates at or above this are discarded
	Estimator    string  // pitch estimator name

	// gauge section
	ShowGauge bool
	Hover     time.Duration
	Rest      int
	Tick      time.Duration

	// display section
	Hang time.Duration
}

var (
	errIniNotFound = errors.New("not found")
)

// New returns a default settings structure.
func New() *Settings {
	return &Settings{
		BufferSize:   tuner.DefaultBufferSize,
		MaxFrequency: tuner.DefaultMaxFrequency,
		Estimator:    pitch.DefaultName,

		ShowGauge: true,
		Hover:     gauge.DefaultHover,
		Rest:      gauge.DefaultRest,
		Tick:      gauge.DefaultTick,

		Hang: tuner.DefaultHangDuration,
	}
}

// Load retrieves settings from an ini file. Keys missing from the file keep
// their current values.
func (s *Settings) Load(filename string) error {
	filename, err := homedir.Expand(filename)
	if err != nil {
		return err
	}
	cfg, err := ini.LoadFile(filename)
	if err != nil {
		return err
	}

	notFound := func(err error) bool {
		return err == nil || errors.Is(err, errIniNotFound)
	}

	// audio
	if err := iniBool(cfg, &s.ChooseDevice, "audio", "choosedevice"); !notFound(err) {
		return err
	}
	if v, ok := cfg.Get("audio", "device"); ok {
		s.Device = strings.TrimSpace(v)
	}
	if err := iniInt(cfg, &s.BufferSize, "audio", "buffersize"); !notFound(err) {
		return err
	}
	if s.BufferSize < minBufferSize {
		return fmt.Errorf("[audio]buffersize must be at least %d", minBufferSize)
	}
	if err := iniFloat(cfg, &s.MaxFrequency, "audio", "maxfrequency"); !notFound(err) {
		return err
	}
	if s.MaxFrequency <= 0 {
		return fmt.Errorf("[audio]maxfrequency must be positive")
	}
	if v, ok := cfg.Get("audio", "estimator"); ok {
		s.Estimator = strings.ToLower(strings.TrimSpace(v))
	}
	if _, err := pitch.ByName(s.Estimator); err != nil {
		return fmt.Errorf("[audio]estimator: %v", err)
	}

	// gauge
	if err := iniBool(cfg, &s.ShowGauge, "gauge", "show"); !notFound(err) {
		return err
	}
	if err := iniDuration(cfg, &s.Hover, "gauge", "hover"); !notFound(err) {
		return err
	}
	if s.Hover < 0 {
		return fmt.Errorf("[gauge]hover must not be negative")
	}
	if err := iniInt(cfg, &s.Rest, "gauge", "rest"); !notFound(err) {
		return err
	}
	if err := iniDuration(cfg, &s.Tick, "gauge", "tick"); !notFound(err) {
		return err
	}
	if s.Tick < time.Millisecond {
		return fmt.Errorf("[gauge]tick must be at least one millisecond")
	}

	// display
	if err := iniDuration(cfg, &s.Hang, "display", "hang"); !notFound(err) {
		return err
	}
	if s.Hang < 0 {
		return fmt.Errorf("[display]hang must not be negative")
	}

	return nil
}

// Load returns the default settings overridden by the ones in filename.
func Load(filename string) (*Settings, error) {
	s := New()
	if err := s.Load(filename); err != nil {
		return nil, err
	}
	return s, nil
}

// TunerOptions returns the tuner options for these settings. selected is the
// device name stored in the state file, which is used when no device is
// configured.
func (s *Settings) TunerOptions(selected string) tuner.Options {
	name := s.Device
	if name == "" {
		name = selected
	}
	return tuner.Options{
		Device: tuner.DeviceOptions{
			Manual: s.ChooseDevice,
			Name:   name,
		},
		BufferSize: s.BufferSize,
		Hover:      s.Hover,
		Tick:       s.Tick,
		Rest:       s.Rest,
		Hang:       s.Hang,
	}
}

var defaultSettingsTmpl = template.Must(template.New("settings").Parse(`[audio]
# Set to yes to use the device below instead of the input the sound server
# reports as running.
choosedevice = {{ if .ChooseDevice }}yes{{ else }}no{{ end }}

# Device name. It does not need to be exact, the closest capture device is
# used.
# device = Built-in Audio

# Number of frames on which each pitch estimate is computed.
buffersize = {{ .BufferSize }}

# Estimates at or above this frequency (in Hz) are discarded.
maxfrequency = {{ .MaxFrequency }}

# Pitch estimator: autocorrelation or yin. Changes apply on restart.
estimator = {{ .Estimator }}

[gauge]
# Whether to show the needle.
show = {{ if .ShowGauge }}yes{{ else }}no{{ end }}

# How long the needle stays over a reading before going back to rest.
hover = {{ .Hover }}

# Rest position of the needle.
rest = {{ .Rest }}

# Needle animation interval.
tick = {{ .Tick }}

[display]
# How long to keep showing the last note after the signal is lost.
hang = {{ .Hang }}
`))

// WriteDefault writes a settings file with the default settings.
func WriteDefault(filename string) error {
	filename, err := homedir.Expand(filename)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := defaultSettingsTmpl.Execute(f, New()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func iniBool(cfg ini.File, p *bool, section, key string) error {
	v, ok := cfg.Get(section, key)
	if ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes":
			*p = true
			return nil
		case "no":
			*p = false
			return nil
		default:
			return fmt.Errorf("[%v]%v must be yes or no",
				section, key)
		}
	}
	return errIniNotFound
}

func iniFloat(cfg ini.File, p *float64, section, key string) error {
	v, ok := cfg.Get(section, key)
	if !ok {
		return errIniNotFound
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("[%v]%v: %v", section, key, err)
	}
	*p = f
	return nil
}

func iniInt(cfg ini.File, p *int, section, key string) error {
	v, ok := cfg.Get(section, key)
	if !ok {
		return errIniNotFound
	}

	i64, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("[%v]%v: %v", section, key, err)
	}
	*p = int(i64)
	return nil
}

func iniDuration(cfg ini.File, p *time.Duration, section, key string) error {
	v, ok := cfg.Get(section, key)
	if !ok {
		return errIniNotFound
	}

	dur, err := strduration.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("[%v]%v: %v", section, key, err)
	}
	*p = dur
	return nil
}
