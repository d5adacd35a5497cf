package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/companyzero/chromatic/internal/version"
	"github.com/companyzero/chromatic/settings"
	"github.com/jrick/flagfile"
	strduration "github.com/xhit/go-str2duration/v2"
)

const (
	appName = "chromatic"

	lockFileName = appName + ".lock"
)

var (
	// Error to signal loadConfig() completed everything the cmd had to do
	// and main() should exit.
	errCmdDone = errors.New("cmd done")
)

type config struct {
	Root          string
	SettingsFile  string
	StateFile     string
	LogFile       string
	MaxLogFiles   int
	DebugLevel    string
	MetricsListen string
	StatsInterval time.Duration
	InTuneColor   string
	OffTuneColor  string

	ListDevices  bool
	CPUProfile   string
	CPUProfileHz int
}

func defaultAppDataDir(homeDir string) string {
	switch runtime.GOOS {
	// Attempt to use the LOCALAPPDATA or APPDATA environment variable on
	// Windows.
	case "windows":
		// Windows XP and before didn't have a LOCALAPPDATA, so fallback
		// to regular APPDATA when LOCALAPPDATA is not set.
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}

		if appData != "" {
			return filepath.Join(appData, appName)
		}

	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library",
				"Application Support", appName)
		}

	case "plan9":
		if homeDir != "" {
			return filepath.Join(homeDir, appName)
		}

	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appName)
		}
	}

	return filepath.Join(".", appName)
}

func expandPath(homeDir, path string) string {
	if len(path) > 0 && path[0] == '~' {
		path = filepath.Join(homeDir, path[1:])
	}

	return path
}

// loadConfig parses the command line args and the config file. A missing
// config file is created with the default contents.
func loadConfig(args []string) (*config, error) {
	// Setup defaults.
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	defaultAppDir := defaultAppDataDir(homeDir)
	defaultCfgFile := filepath.Join(defaultAppDir, appName+".conf")

	// Parse CLI arguments.
	fs := flag.NewFlagSet("CLI Arguments", flag.ContinueOnError)
	flagVersion := fs.Bool("version", false, "Display current version and exit")
	flagCfgFile := fs.String("cfg", defaultCfgFile, "Config file to load")
	flagListDevices := fs.Bool("lsdev", false, "List capture devices and exit")
	flagProfile := fs.String("profile", "", "ip:port of where to run the go profiler")
	flagCPUProfile := fs.String("cpuprofile", "", "filename to dump CPU profiling")
	flagCPUProfileHz := fs.Int("cpuprofilehz", 0, "Frequency to sample cpu profiling")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errCmdDone
		}
		return nil, err
	}

	if *flagVersion {
		fmt.Println("Version: " + version.String())
		return nil, errCmdDone
	}

	if *flagProfile != "" {
		go http.ListenAndServe(*flagProfile, nil)
	}

	// Make sure cfgFile is not empty.
	cfgFile := *flagCfgFile
	if cfgFile == "" {
		cfgFile = defaultCfgFile
	}
	cfgFile = expandPath(homeDir, cfgFile)

	// Generate the config file on first run.
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if err := saveNewConfig(homeDir, cfgFile); err != nil {
			return nil, fmt.Errorf("unable to create config file: %v", err)
		}
	}

	f, err := os.Open(cfgFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Define config file flags.
	defaultRoot := filepath.Dir(cfgFile)
	fs = flag.NewFlagSet("Config Options", flag.ContinueOnError)
	flagRootDir := fs.String("root", defaultRoot, "Root of all app data")
	flagSettingsFile := fs.String("settingsfile", "", "Tuner settings file")

	// log
	flagLogFile := fs.String("log.logfile", "", "Log file location")
	flagMaxLogFiles := fs.Int("log.maxlogfiles", 3, "Max log files")
	flagDebugLevel := fs.String("log.debuglevel", "info", "Debug Level")

	// metrics
	flagMetricsListen := fs.String("metrics.listen", "", "Address of the prometheus listener")
	flagStatsInterval := fs.String("metrics.statsinterval", "0", "Interval between stats reports")

	// theme
	flagInTuneColor := fs.String("theme.intunecolor", "bold:green:na", "color of in tune readings")
	flagOffTuneColor := fs.String("theme.offtunecolor", "bold:yellow:na", "color of out of tune readings")

	parser := flagfile.Parser{
		ParseSections: true,
	}
	if err := parser.Parse(f, fs); err != nil {
		return nil, err
	}

	statsInterval, err := strduration.ParseDuration(*flagStatsInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid statsinterval: %v", err)
	}

	rootDir := expandPath(homeDir, *flagRootDir)
	settingsFile := *flagSettingsFile
	if settingsFile == "" {
		settingsFile = filepath.Join(rootDir, settings.DefaultFilename)
	}
	logFile := *flagLogFile
	if logFile == "" {
		logFile = filepath.Join(rootDir, "logs", appName+".log")
	}

	return &config{
		Root:          rootDir,
		SettingsFile:  expandPath(homeDir, settingsFile),
		StateFile:     filepath.Join(rootDir, settings.StateFilename),
		LogFile:       expandPath(homeDir, logFile),
		MaxLogFiles:   *flagMaxLogFiles,
		DebugLevel:    *flagDebugLevel,
		MetricsListen: *flagMetricsListen,
		StatsInterval: statsInterval,
		InTuneColor:   *flagInTuneColor,
		OffTuneColor:  *flagOffTuneColor,

		ListDevices:  *flagListDevices,
		CPUProfile:   *flagCPUProfile,
		CPUProfileHz: *flagCPUProfileHz,
	}, nil
}

// saveNewConfig writes the default config file. The data root is the dir of
// the config file.
func saveNewConfig(homeDir, cfgFile string) error {
	root := filepath.Dir(cfgFile)
	if homeDir != "" && strings.HasPrefix(root, homeDir) {
		root = "~" + root[len(homeDir):]
	}
	cfg := &config{
		Root:         root,
		LogFile:      filepath.Join(root, "logs", appName+".log"),
		SettingsFile: filepath.Join(root, settings.DefaultFilename),
		DebugLevel:   "info",
		MaxLogFiles:  3,
	}

	tmpl, err := template.New("configfile").Parse(defaultConfigFileContent)
	if err != nil {
		return err
	}

	var generated bytes.Buffer
	if err := tmpl.Execute(&generated, cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfgFile), 0o700); err != nil {
		return fmt.Errorf("unable to create data dir: %v", err)
	}

	return os.WriteFile(cfgFile, generated.Bytes(), 0o600)
}
