// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/pdiddy/rebib/pkg/types"
)

// UntouchedSeparator precedes untouched entries when both groups share
// one output file.
const UntouchedSeparator = "%% The following entries are untouched \n"

// Outputs names the artifacts written at the end of a run.
type Outputs struct {
	// Updated receives resolved entries.
	Updated string

	// Untouched optionally receives untouched entries. When empty they are
	// appended to Updated after UntouchedSeparator.
	Untouched string
}

// Write serializes both groups to their artifacts. The untouched group is
// preceded by its source preamble blocks so string macros still resolve.
// Each file is locked for the duration of the write and replaced
// atomically.
func Write(out Outputs, updated []types.Entry, untouched Bibliography) error {
	if out.Untouched == "" {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, updated); err != nil {
			return err
		}
		buf.WriteString(UntouchedSeparator)
		if err := writeBibliography(&buf, untouched); err != nil {
			return err
		}
		return writeLocked(out.Updated, buf.Bytes())
	}

	var upd, unt bytes.Buffer
	if err := WriteEntries(&upd, updated); err != nil {
		return err
	}
	if err := writeBibliography(&unt, untouched); err != nil {
		return err
	}
	if err := writeLocked(out.Updated, upd.Bytes()); err != nil {
		return err
	}
	return writeLocked(out.Untouched, unt.Bytes())
}

func writeBibliography(w io.Writer, bib Bibliography) error {
	for _, p := range bib.Preamble {
		if _, err := io.WriteString(w, p+"\n\n"); err != nil {
			return err
		}
	}
	return WriteEntries(w, bib.Entries)
}

// writeLocked takes an exclusive lock beside path, writes data to a
// temporary file in the same directory, and renames it into place.
func writeLocked(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("output %s is locked by another run", path)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	tmpFile, err := os.CreateTemp(dir, ".rebib-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
