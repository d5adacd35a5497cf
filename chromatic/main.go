package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/companyzero/chromatic/internal/audio"
	"github.com/companyzero/chromatic/lockfile"
	"github.com/companyzero/chromatic/mixer"
	"github.com/companyzero/chromatic/tuner"
	"github.com/decred/slog"
)

// listDevices prints the capture devices of the audio backend.
func listDevices(w io.Writer, log slog.Logger) error {
	backend, err := audio.NewBackend(log)
	if err != nil {
		return err
	}
	defer backend.Close()

	devs, err := backend.CaptureDevices()
	if err != nil {
		return err
	}
	writeDeviceList(w, backend.Name(), devs)

	// Sound server names are what the running input fallback matches
	// against the capture devices.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	inputs, err := mixer.NewPulse(log).InputDescriptions(ctx)
	if err != nil {
		fmt.Fprintf(w, "\nSound server inputs unavailable: %v\n", err)
		return nil
	}
	writeMixerInputs(w, inputs, devs)
	return nil
}

// writeMixerInputs lists the sound server inputs along with the capture
// device each one resolves to.
func writeMixerInputs(w io.Writer, inputs []string, devs []audio.Device) {
	fmt.Fprintln(w, "\nSound server inputs:")
	if len(inputs) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	names := make([]string, len(devs))
	for i, dev := range devs {
		names[i] = dev.Name
	}
	for _, in := range inputs {
		if idx, ok := tuner.Resolve(in, names); ok {
			fmt.Fprintf(w, "  %s -> %d %s\n", in, devs[idx].Index, devs[idx].Name)
		} else {
			fmt.Fprintf(w, "  %s -> no match\n", in)
		}
	}
}

func writeDeviceList(w io.Writer, driver string, devs []audio.Device) {
	fmt.Fprintf(w, "Capture devices (%s):\n", driver)
	if len(devs) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, dev := range devs {
		def := " "
		if dev.IsDefault {
			def = "*"
		}
		fmt.Fprintf(w, "%s %3d %s (inputs %d, %d Hz)\n", def, dev.Index,
			dev.Name, dev.MaxInputChannels, dev.DefaultSampleRate)
	}
}

func realMain() error {
	// Load config.
	args, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if args.ListDevices {
		if err := listDevices(os.Stdout, slog.Disabled); err != nil {
			return err
		}
		return errCmdDone
	}

	// Start CPU profiling.
	if args.CPUProfile != "" {
		f, err := os.Create(args.CPUProfile)
		if err != nil {
			return err
		}
		if args.CPUProfileHz > 0 {
			runtime.SetCPUProfileRate(args.CPUProfileHz)
		}

		pprof.StartCPUProfile(f)
		defer f.Close()
		defer pprof.StopCPUProfile()
	}

	// Only one instance may use a data dir.
	lockFilePath := filepath.Join(args.Root, lockFileName)
	ctxLF, cancel := context.WithTimeout(context.Background(), time.Second)
	lf, err := lockfile.Create(ctxLF, lockFilePath)
	cancel()
	if err != nil {
		return fmt.Errorf("unable to create lockfile %q: %v", lockFilePath, err)
	}
	defer lf.Close()

	// Run main app.
	var p *tea.Program
	msgSender := func(msg tea.Msg) {
		if p == nil {
			return
		}
		go func() { p.Send(msg) }()
	}

	var as *appState
	logBknd, err := newLogBackend(func(line string) {
		if as != nil {
			as.notice(line)
		}
	}, args.LogFile, args.DebugLevel, args.MaxLogFiles)
	if err != nil {
		return err
	}
	defer logBknd.close()

	as, err = newAppState(msgSender, logBknd, args)
	if err != nil {
		return err
	}

	p = tea.NewProgram(newTunerWin(as), tea.WithAltScreen())
	as.start()

	progDoneChan := make(chan struct{})
	go listenToCrashSignals(p, progDoneChan, as.log)
	_, err = p.Run()
	close(progDoneChan)

	// Make sure every stream is closed even if the program did not go
	// through the shutdown state.
	as.cancel()
	as.wg.Wait()
	if err != nil {
		return err
	}

	crashStack, runErr := as.getExitState()
	if crashStack != "" {
		fmt.Fprintln(os.Stderr, crashStack)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func main() {
	err := realMain()
	if err != nil && !errors.Is(err, errCmdDone) {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
