package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Destination is where a serializer writes. File destinations remember the
// first line they held before this run so a CSV header can be reused.
type Destination struct {
	w      io.Writer
	closer io.Closer
	name   string
	// FirstLine is the existing first line of the file, without the line
	// terminator. Only meaningful when Resumed is set.
	FirstLine string
	// Resumed reports whether the file already had content.
	Resumed bool
}

// Open opens path for append, creating it and its parent directory if needed.
// "-" and the empty path write to stdout.
func Open(path string) (*Destination, error) {
	if path == "" || path == "-" {
		return Writer(os.Stdout), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o640) //nolint:gosec // user-chosen output path
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	first, resumed, err := readFirstLine(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("inspect output %s: %w", path, err)
	}
	return &Destination{w: f, closer: f, name: path, FirstLine: first, Resumed: resumed}, nil
}

// Writer wraps w as a fresh destination. The caller keeps ownership of w.
func Writer(w io.Writer) *Destination {
	return &Destination{w: w, name: "stream"}
}

func readFirstLine(f *os.File) (string, bool, error) {
	info, err := f.Stat()
	if err != nil {
		return "", false, fmt.Errorf("stat: %w", err)
	}
	if info.Size() == 0 {
		return "", false, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", false, fmt.Errorf("seek: %w", err)
	}
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, fmt.Errorf("read first line: %w", err)
	}
	// Terminate a dangling last line so appended rows start on their own line.
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return "", false, fmt.Errorf("read last byte: %w", err)
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return "", false, fmt.Errorf("terminate last line: %w", err)
		}
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

// Write implements io.Writer.
func (d *Destination) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", d.name, err)
	}
	return n, nil
}

// Name returns the path, or "stream" for writer destinations.
func (d *Destination) Name() string { return d.name }

// Close closes the underlying file. Writer destinations are left open.
func (d *Destination) Close() error {
	if d.closer == nil {
		return nil
	}
	if err := d.closer.Close(); err != nil {
		return fmt.Errorf("close %s: %w", d.name, err)
	}
	return nil
}
