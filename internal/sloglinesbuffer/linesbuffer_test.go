package sloglinesbuffer

import (
	"fmt"
	"testing"

	"github.com/companyzero/chromatic/internal/assert"
)

func TestBufferRing(t *testing.T) {
	t.Parallel()

	buff := &Buffer{MaxLines: 3}
	assert.DeepEqual(t, buff.LastLogLines(5), []string{})

	for i := 0; i < 5; i++ {
		n, err := buff.Write([]byte(fmt.Sprintf("line %d\n", i)))
		assert.NilErr(t, err)
		assert.DeepEqual(t, n, 7)
	}

	assert.DeepEqual(t, buff.LastLogLines(-1), []string{"line 2\n", "line 3\n", "line 4\n"})
	assert.DeepEqual(t, buff.LastLogLines(2), []string{"line 3\n", "line 4\n"})
}

func TestBufferListen(t *testing.T) {
	t.Parallel()

	var buff Buffer
	lines := make(chan string, 5)
	lis := buff.Listen(func(s string) { lines <- s })

	buff.Write([]byte("first"))
	assert.ChanWrittenWithVal(t, lines, "first")

	lis.Close()
	buff.Write([]byte("second"))
	assert.DeepEqual(t, len(lines), 0)
	assert.DeepEqual(t, buff.LastLogLines(-1), []string{"first", "second"})
}
