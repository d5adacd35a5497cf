// Package lockfile ensures a single process uses a data dir at a time.
package lockfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// Owner identifies the process that holds a lock file.
type Owner struct {
	PID     int
	Host    string
	Process string
}

func (o Owner) String() string {
	return fmt.Sprintf("%s (pid %d on %s)", o.Process, o.PID, o.Host)
}

// ErrLocked is returned by Create when the lock is held by another process
// for longer than the context allowed.
type ErrLocked struct {
	Path  string
	Owner *Owner
	Err   error
}

func (err ErrLocked) Error() string {
	if err.Owner == nil {
		return fmt.Sprintf("%s is locked: %v", err.Path, err.Err)
	}
	return fmt.Sprintf("%s is locked by %s: %v", err.Path, err.Owner, err.Err)
}

func (err ErrLocked) Unwrap() error {
	return err.Err
}

// LockFile holds the lockfile.
type LockFile struct {
	f    *lockedfile.File
	path string
}

// Path is the path of the lock file.
func (lf *LockFile) Path() string {
	return lf.path
}

// Close releases the lock.
func (lf *LockFile) Close() error {
	if lf.f == nil {
		return fmt.Errorf("nil internal locked file")
	}
	return lf.f.Close()
}

func writeOwner(f *lockedfile.File) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "PID=%d\n", os.Getpid())
	host, _ := os.Hostname()
	fmt.Fprintf(&b, "Host=%q\n", host)
	procName := ""
	if len(os.Args) > 0 {
		procName = os.Args[0]
	}
	fmt.Fprintf(&b, "Process=%q\n", procName)

	// The owner info is only used for diagnostics, so errors are ignored.
	f.Write(b.Bytes())
}

// ReadOwner reads the owner info written by the process that holds the lock
// file. The file is read without acquiring the lock.
func ReadOwner(filePath string) (*Owner, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var o Owner
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		k, v, ok := strings.Cut(s.Text(), "=")
		if !ok {
			continue
		}
		switch k {
		case "PID":
			o.PID, err = strconv.Atoi(v)
		case "Host":
			o.Host, err = strconv.Unquote(v)
		case "Process":
			o.Process, err = strconv.Unquote(v)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid %s in lock file: %v", k, err)
		}
	}
	if o.PID == 0 {
		return nil, errors.New("lock file has no owner info")
	}
	return &o, nil
}

// Create acquires the lock file at filePath, creating its dir if needed. It
// blocks while another process holds the lock, until ctx is done.
func Create(ctx context.Context, filePath string) (*LockFile, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o0700); err != nil {
		return nil, err
	}
	cf := make(chan *lockedfile.File)
	cerr := make(chan error)
	go func() {
		f, err := lockedfile.Create(filePath)
		if err != nil {
			cerr <- err
		} else {
			cf <- f
		}
	}()

	select {
	case f := <-cf:
		writeOwner(f)
		return &LockFile{f: f, path: filePath}, nil

	case err := <-cerr:
		return nil, err

	case <-ctx.Done():
		// The file may still (eventually) be locked, so make sure it is
		// released if that happens.
		go func() {
			select {
			case <-cerr:
			case f := <-cf:
				f.Close()
			}
		}()
		owner, _ := ReadOwner(filePath)
		return nil, ErrLocked{Path: filePath, Owner: owner, Err: ctx.Err()}
	}
}
