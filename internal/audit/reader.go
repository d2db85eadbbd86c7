package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Read decodes every entry in r. Malformed lines are skipped with a warning.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	_, err := scan(r, func(e Entry) { entries = append(entries, e) })
	return entries, err
}

// ReadFile decodes the audit log at path and returns the offset just past the
// last complete line, suitable for passing to Follow. A missing file has no
// entries.
func ReadFile(path string) ([]Entry, int64, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	n, err := scan(f, func(e Entry) { entries = append(entries, e) })
	return entries, n, err
}

// scan calls fn for each complete line in r and returns the number of bytes
// consumed. A trailing partial line is left unconsumed.
func scan(r io.Reader, fn func(Entry)) (int64, error) {
	br := bufio.NewReader(r)
	var n int64
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			n += int64(len(line))
			var e Entry
			if jerr := json.Unmarshal(line, &e); jerr != nil {
				slog.Warn("skipping malformed audit line", "error", jerr)
			} else {
				fn(e)
			}
		}
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reading audit log: %w", err)
		}
	}
}

// Follow calls fn for every entry appended to path at or after offset until
// ctx is cancelled. It watches the log's directory so a log that does not
// exist yet is picked up once created.
func Follow(ctx context.Context, path string, offset int64, fn func(Entry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	slog.Debug("following audit log", "path", path, "offset", offset)

	drain := func() {
		next, err := readFrom(path, offset, fn)
		if err != nil {
			slog.Warn("reading audit log", "path", path, "error", err)
			return
		}
		offset = next
	}
	drain()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// Rotated away; start over when it reappears.
				offset = 0
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			drain()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("audit watcher error", "error", err)
		}
	}
}

func readFrom(path string, offset int64, fn func(Entry)) (int64, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		// Truncated.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	n, err := scan(f, fn)
	return offset + n, err
}
