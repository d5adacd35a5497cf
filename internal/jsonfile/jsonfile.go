// Package jsonfile reads and atomically writes small json state files.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/decred/slog"
)

var ErrNotFound = errors.New("json file not found")

// tempName is the name of the file written before being renamed to fname.
func tempName(fname string) string {
	return filepath.Join(filepath.Dir(fname), "."+filepath.Base(fname)+".new")
}

// writeSynced encodes data into a new file named fname and syncs it to disk.
func writeSynced(fname string, data any) (err error) {
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("unable to close temp file: %w", closeErr)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("unable to encode json contents: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("unable to fsync temp file: %w", err)
	}
	return nil
}

// Write encodes data as json into fname. The contents are written to a temp
// file that is renamed to fname, so readers never see a partial file.
//
// log is used for warnings that do not fail the write. It may be nil.
func Write(fname string, data any, log slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(fname), 0o700); err != nil {
		return fmt.Errorf("unable to create dest dir: %w", err)
	}

	tmp := tempName(fname)
	err := writeSynced(tmp, data)
	if err == nil {
		err = os.Rename(tmp, fname)
		if err != nil {
			err = fmt.Errorf("unable to rename temp file: %w", err)
		}
	}
	if err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && log != nil {
			log.Warnf("Unable to remove temp file %s: %v", tmp, rmErr)
		}
	}
	return err
}

// Read decodes the json contents of fname into data. ErrNotFound is returned
// if the file does not exist.
func Read(fname string, data any) error {
	b, err := os.ReadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if err := json.Unmarshal(b, data); err != nil {
		return fmt.Errorf("unable to decode %s: %w", fname, err)
	}
	return nil
}
