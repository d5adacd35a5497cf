// Package assert has the test assertions shared by every package of the
// module.
package assert

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// timeout is how long the chan and blocking asserts wait.
const timeout = 10 * time.Second

// pollInterval is the interval between checks of Eventually.
const pollInterval = 5 * time.Millisecond

func recv[T any](t testing.TB, c <-chan T) T {
	t.Helper()
	var v T
	select {
	case v = <-c:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for chan read")
	}
	return v
}

func notRecv[T any](t testing.TB, c <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v := <-c:
		t.Fatalf("channel was written with value %v", v)
	case <-time.After(d):
	}
}

// ChanWritten returns the value written to chan c or times out.
func ChanWritten[T any](t testing.TB, c chan T) T {
	t.Helper()
	return recv(t, c)
}

// ChanWrittenWithVal asserts the chan c was written with a value that
// DeepEquals want.
func ChanWrittenWithVal[T any](t testing.TB, c chan T, want T) T {
	t.Helper()
	got := recv(t, c)
	DeepEqual(t, got, want)
	return got
}

// ChanNotWritten asserts that the chan is not written for at least d.
func ChanNotWritten[T any](t testing.TB, c chan T, d time.Duration) {
	t.Helper()
	notRecv(t, c, d)
}

// RecvChan is ChanWritten for receive-only chans.
func RecvChan[T any](t testing.TB, c <-chan T) T {
	t.Helper()
	return recv(t, c)
}

// RecvChanNotWritten is ChanNotWritten for receive-only chans.
func RecvChanNotWritten[T any](t testing.TB, c <-chan T, d time.Duration) {
	t.Helper()
	notRecv(t, c, d)
}

// ChanClosed asserts the chan c is closed before the timeout expires.
func ChanClosed(t testing.TB, c <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-c:
		if ok {
			t.Fatal("chan was written instead of closed")
		}
	case <-time.After(timeout):
		t.Fatal("timeout waiting for chan to be closed")
	}
}

// WriteChan attempts to send v to c.
func WriteChan[T any](t testing.TB, c chan T, v T) {
	t.Helper()
	select {
	case c <- v:
	case <-time.After(timeout):
		t.Fatalf("Timeout waiting to send to chan")
	}
}

// DoesNotBlock asserts that calling f() returns before the timeout.
func DoesNotBlock(t testing.TB, f func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		f()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for function to finish")
	}
}

// Eventually asserts cond becomes true before the timeout.
func Eventually(t testing.TB, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(pollInterval)
	}
}

// DeepEqual asserts got is reflect.DeepEqual to want. Structured values are
// dumped in full on failure.
func DeepEqual[T any](t testing.TB, got, want T) {
	t.Helper()
	if reflect.DeepEqual(got, want) {
		return
	}
	switch reflect.ValueOf(got).Kind() {
	case reflect.Struct, reflect.Slice, reflect.Map, reflect.Pointer:
		t.Fatalf("Unexpected values:\ngot  %s\nwant %s", spew.Sdump(got),
			spew.Sdump(want))
	default:
		t.Fatalf("Unexpected values: got %v, want %v", got, want)
	}
}

// ErrorIs asserts that errors.Is(got, want).
func ErrorIs(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("Unexpected error: got %v, want %v", got, want)
	}
}

// NilErr fails the test if err is non-nil.
func NilErr(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected non-nil error: %v", err)
	}
}

// NonNilErr asserts that err is not nil.
func NonNilErr(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("unexpected nil error")
	}
}

// BoolIs asserts the given bool value.
func BoolIs(t testing.TB, got, want bool) {
	t.Helper()
	if got != want {
		t.Fatalf("unexpected bool. got %v, want %v", got, want)
	}
}

// InDelta asserts got is within delta of want.
func InDelta(t testing.TB, got, want, delta float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > delta {
		t.Fatalf("Unexpected value: got %v, want %v (+/- %v)", got, want, delta)
	}
}
