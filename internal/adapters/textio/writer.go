package textio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// PartName is the single part file written into each output directory.
const PartName = "part-00000"

// LineWriter writes newline-terminated lines to a file through a buffer.
type LineWriter struct {
	path  string
	f     *os.File
	w     *bufio.Writer
	lines int
}

// Create truncates or creates path, making parent directories as needed.
func Create(path string) (*LineWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &LineWriter{path: path, f: f, w: bufio.NewWriterSize(f, 256<<10)}, nil
}

// CreatePart creates dir/PartName.
func CreatePart(dir string) (*LineWriter, error) {
	return Create(filepath.Join(dir, PartName))
}

// WriteLine appends line and a newline.
func (lw *LineWriter) WriteLine(line string) error {
	if _, err := lw.w.WriteString(line); err != nil {
		return err
	}
	lw.lines++
	return lw.w.WriteByte('\n')
}

// Lines returns the number of lines written.
func (lw *LineWriter) Lines() int { return lw.lines }

// Path returns the file being written.
func (lw *LineWriter) Path() string { return lw.path }

// Close flushes and closes the file.
func (lw *LineWriter) Close() error {
	if err := lw.w.Flush(); err != nil {
		_ = lw.f.Close()
		return fmt.Errorf("flush %s: %w", lw.path, err)
	}
	return lw.f.Close()
}

// WriteLines writes all lines to dir/PartName.
func WriteLines(dir string, lines []string) (string, error) {
	lw, err := CreatePart(dir)
	if err != nil {
		return "", err
	}
	for _, l := range lines {
		if err := lw.WriteLine(l); err != nil {
			_ = lw.Close()
			return "", err
		}
	}
	return lw.Path(), lw.Close()
}
