// Package mixer queries the OS sound server for its input sources.
package mixer

import (
	"context"
	"fmt"

	"github.com/decred/slog"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Source states, as reported by the sound server.
const (
	StateRunning   uint32 = 0
	StateIdle      uint32 = 1
	StateSuspended uint32 = 2
)

// Source is an input source reported by the sound server.
type Source struct {
	Index       uint32
	Name        string
	Description string
	State       uint32

	// MonitorOf is the sink monitored by this source. Empty for real
	// inputs.
	MonitorOf string
}

// IsMonitor returns true if the source monitors an output.
func (s *Source) IsMonitor() bool {
	return s.MonitorOf != ""
}

// IsRunning returns true if the source is currently capturing.
func (s *Source) IsRunning() bool {
	return s.State == StateRunning
}

func sourceFromInfo(info *proto.GetSourceInfoReply) Source {
	return Source{
		Index:       info.SourceIndex,
		Name:        info.SourceName,
		Description: info.Device,
		State:       info.State,
		MonitorOf:   info.MonitorSourceName,
	}
}

// listSourceInfos connects to the sound server and lists its sources. Works
// with PulseAudio and PipeWire (through pipewire-pulse).
func listSourceInfos() ([]*proto.GetSourceInfoReply, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("chromatic"))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to sound server: %w", err)
	}
	defer c.Close()

	var reply proto.GetSourceInfoListReply
	if err := c.RawRequest(&proto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("unable to list sources: %w", err)
	}
	return reply, nil
}

// Pulse lists the sources of a PulseAudio compatible sound server.
type Pulse struct {
	log  slog.Logger
	list func() ([]*proto.GetSourceInfoReply, error)
}

// NewPulse returns a mixer that queries the sound server of the current
// session.
func NewPulse(log slog.Logger) *Pulse {
	if log == nil {
		log = slog.Disabled
	}
	return &Pulse{
		log:  log,
		list: listSourceInfos,
	}
}

// Sources lists every source.
func (p *Pulse) Sources(ctx context.Context) ([]Source, error) {
	type result struct {
		infos []*proto.GetSourceInfoReply
		err   error
	}
	c := make(chan result, 1)
	go func() {
		infos, err := p.list()
		c <- result{infos, err}
	}()

	var r result
	select {
	case r = <-c:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}

	res := make([]Source, 0, len(r.infos))
	for _, info := range r.infos {
		if info != nil {
			res = append(res, sourceFromInfo(info))
		}
	}
	return res, nil
}

// RunningInputs returns the description of every running source that is not
// a monitor of an output.
func (p *Pulse) RunningInputs(ctx context.Context) ([]string, error) {
	sources, err := p.Sources(ctx)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, s := range sources {
		if !s.IsRunning() || s.IsMonitor() {
			continue
		}
		p.log.Debugf("Running source %d: %s", s.Index, s.Name)
		res = append(res, s.Description)
	}
	return res, nil
}

// InputDescriptions returns the description of every source that is not a
// monitor of an output.
func (p *Pulse) InputDescriptions(ctx context.Context) ([]string, error) {
	sources, err := p.Sources(ctx)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, s := range sources {
		if !s.IsMonitor() {
			res = append(res, s.Description)
		}
	}
	return res, nil
}
