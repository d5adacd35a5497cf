package main

import (
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// batchCmds batches the non-nil cmds, avoiding the tea.Batch wrapper when
// there is at most one of them.
func batchCmds(cmds []tea.Cmd) tea.Cmd {
	var res []tea.Cmd
	for _, cmd := range cmds {
		if cmd != nil {
			res = append(res, cmd)
		}
	}
	if len(res) < 2 {
		if len(res) == 0 {
			return nil
		}
		return res[0]
	}
	return tea.Batch(res...)
}

// emitAfter returns a cmd that emits msg after d.
func emitAfter(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

// allStack returns the stack of every goroutine.
func allStack() []byte {
	for size := 64 << 10; ; size *= 2 {
		buf := make([]byte, size)
		if n := runtime.Stack(buf, true); n < size {
			return buf[:n]
		}
	}
}

// blankLines returns the newlines needed to push the following content nb
// lines down.
func blankLines(nb int) string {
	return strings.Repeat("\n", max(nb, 0))
}
