// Package textio reads and writes the line-oriented files exchanged between
// pipeline stages.
package textio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxLineSize bounds the lines ReadLines keeps.
const DefaultMaxLineSize = 4 << 20

type readOptions struct {
	maxLineSize int
	onLongLine  func(size int) error
}

// ReadOption configures ReadLines.
type ReadOption func(*readOptions)

// WithMaxLineSize sets the longest line, in bytes, that is passed to fn.
func WithMaxLineSize(n int) ReadOption {
	return func(o *readOptions) {
		if n > 0 {
			o.maxLineSize = n
		}
	}
}

// OnLongLine is called with the size of every line longer than the maximum.
// Such lines are consumed and never passed to fn.
func OnLongLine(fn func(size int) error) ReadOption {
	return func(o *readOptions) {
		o.onLongLine = fn
	}
}

// PartFiles returns the files behind path: path itself when it is a file,
// or every regular file directly inside it, sorted, skipping names that
// start with '.' or '_'.
func PartFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		files = append(files, filepath.Join(path, name))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no part files in %s", ErrNotFound, path)
	}
	return files, nil
}

// ReadLines calls fn for every line under path (see PartFiles). A trailing
// '\r' is removed. Lines over the maximum size are skipped and reported to
// OnLongLine. It stops at the first error from a callback or when ctx is done.
func ReadLines(ctx context.Context, path string, fn func(line string) error, opts ...ReadOption) error {
	o := readOptions{maxLineSize: DefaultMaxLineSize}
	for _, opt := range opts {
		opt(&o)
	}

	files, err := PartFiles(path)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := readFile(ctx, f, fn, o); err != nil {
			return err
		}
	}
	return nil
}

func readFile(ctx context.Context, path string, fn func(string) error, o readOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64<<10)
	var buf []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, size, err := readLine(r, buf[:0], o.maxLineSize)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		buf = line
		if size > o.maxLineSize {
			if o.onLongLine != nil {
				if err := o.onLongLine(size); err != nil {
					return err
				}
			}
			continue
		}
		if err := fn(string(line)); err != nil {
			return err
		}
	}
}

// readLine reads up to the next '\n' and returns the line without its
// terminator and its size. A line longer than max is consumed but not kept.
// io.EOF is returned only when nothing was read.
func readLine(r *bufio.Reader, buf []byte, max int) ([]byte, int, error) {
	size, long := 0, false
	for {
		chunk, err := r.ReadSlice('\n')
		full := errors.Is(err, bufio.ErrBufferFull)
		if err != nil && !full && !errors.Is(err, io.EOF) {
			return nil, 0, err
		}
		if !full {
			chunk = bytes.TrimSuffix(chunk, []byte{'\n'})
		}
		size += len(chunk)
		// One spare byte for a '\r' split from its '\n'.
		if !long && size > max+1 {
			long, buf = true, buf[:0]
		}
		if !long {
			buf = append(buf, chunk...)
		}
		if full {
			continue
		}
		if errors.Is(err, io.EOF) && size == 0 {
			return nil, 0, io.EOF
		}
		break
	}
	if long {
		return buf, size, nil
	}
	buf = bytes.TrimSuffix(buf, []byte{'\r'})
	return buf, len(buf), nil
}
