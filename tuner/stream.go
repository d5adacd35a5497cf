package tuner

import (
	"sync"

	"github.com/companyzero/chromatic/internal/audio"
	"github.com/decred/slog"
)

// StreamState is the lifecycle state of a capture stream.
type StreamState int

const (
	StateStopped StreamState = iota
	StateStarting
	StateActive
	StateClosing
)

func (s StreamState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// StreamInfo is a snapshot of a stream handle.
type StreamInfo struct {
	ID         uint64
	Device     audio.Device
	SampleRate uint32
	BufferSize int
	State      StreamState
}

// PitchSample is a single estimate published by a stream worker.
type PitchSample struct {
	// StreamID identifies the stream that produced the sample.
	StreamID uint64

	// Frequency in Hz. Values <= 0 mean no pitch was detected.
	Frequency float64

	Valid bool
}

// stream is a capture stream and the state shared between its capture
// callback and worker goroutine.
type stream struct {
	id      uint64
	dev     audio.Device
	bufSize int
	log     slog.Logger
	stats   *Stats

	capture    audio.Stream
	sampleRate uint32

	// buffers carries full buffers from the capture callback to the
	// worker.
	buffers chan []float32
	pool    sync.Pool

	// pending is the buffer being filled. Only accessed by the capture
	// callback.
	pending []float32

	// quit is closed by the supervisor to stop the worker. done is closed
	// by the worker once it has exited and released the device.
	quit chan struct{}
	done chan struct{}

	// state is guarded by the supervisor's mtx.
	state StreamState
}

func newStream(id uint64, dev audio.Device, bufSize, queueLen int, log slog.Logger, stats *Stats) *stream {
	st := &stream{
		id:      id,
		dev:     dev,
		bufSize: bufSize,
		log:     log,
		stats:   stats,
		buffers: make(chan []float32, queueLen),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateStarting,
	}
	st.pool.New = func() any {
		return make([]float32, 0, bufSize)
	}
	return st
}

func (st *stream) getBuffer() []float32 {
	return st.pool.Get().([]float32)[:0]
}

func (st *stream) putBuffer(buf []float32) {
	st.pool.Put(buf[:0])
}

// onSamples is the capture callback. It frames the incoming samples into
// fixed size buffers and hands full ones to the worker without blocking.
func (st *stream) onSamples(samples []float32) {
	for len(samples) > 0 {
		if st.pending == nil {
			st.pending = st.getBuffer()
		}
		n := min(st.bufSize-len(st.pending), len(samples))
		st.pending = append(st.pending, samples[:n]...)
		samples = samples[n:]
		if len(st.pending) < st.bufSize {
			return
		}

		buf := st.pending
		st.pending = nil
		st.stats.bufferCaptured()
		select {
		case st.buffers <- buf:
		default:
			st.putBuffer(buf)
			st.stats.bufferDropped()
		}
	}
}

func (st *stream) info() StreamInfo {
	return StreamInfo{
		ID:         st.id,
		Device:     st.dev,
		SampleRate: st.sampleRate,
		BufferSize: st.bufSize,
		State:      st.state,
	}
}
