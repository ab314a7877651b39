// Package staging writes and reads the transient tab-separated artifact used
// to bulk-transfer projected rows into a target store.
//
// Format: one row per line, fields separated by a tab. NULL is written as \N.
// Backslash, tab, newline and carriage return inside a value are escaped as
// \\, \t, \n and \r. This is the default text format of both MySQL
// LOAD DATA INFILE and PostgreSQL COPY, so either can read the file directly.
package staging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"logreduce/internal/records"
)

// Null is the on-disk NULL marker.
const Null = `\N`

// Artifact is a finished staging file.
type Artifact struct {
	Path    string
	Columns []string
	Rows    int64
}

// Remove deletes the file. Removing an already removed artifact is not an
// error.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("staging: remove %s: %w", a.Path, err)
	}
	return nil
}

// Writer streams rows into a new staging file.
type Writer struct {
	f       *os.File
	bw      *bufio.Writer
	columns []string
	rows    int64
	scratch []byte
}

// Create opens a new staging file in dir (the OS temp dir when empty). The
// table name is only used to make the file name recognizable.
func Create(dir, table string, columns []string) (*Writer, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("staging: at least one column is required")
	}
	f, err := os.CreateTemp(dir, "logreduce-"+sanitize(table)+"-*.tsv")
	if err != nil {
		return nil, fmt.Errorf("staging: create: %w", err)
	}
	return &Writer{
		f:       f,
		bw:      bufio.NewWriterSize(f, 64<<10),
		columns: append([]string(nil), columns...),
	}, nil
}

// Path is the file being written.
func (w *Writer) Path() string { return w.f.Name() }

// Write appends one row. len(row) must equal the column count.
func (w *Writer) Write(row []any) error {
	if len(row) != len(w.columns) {
		return fmt.Errorf("staging: row has %d values, want %d", len(row), len(w.columns))
	}
	buf := w.scratch[:0]
	for i, v := range row {
		if i > 0 {
			buf = append(buf, '\t')
		}
		if v == nil {
			buf = append(buf, Null...)
			continue
		}
		buf = appendEscaped(buf, records.Text(v))
	}
	buf = append(buf, '\n')
	w.scratch = buf
	if _, err := w.bw.Write(buf); err != nil {
		return fmt.Errorf("staging: write: %w", err)
	}
	w.rows++
	return nil
}

// Close flushes and closes the file and returns the finished artifact. On
// failure the partial file is removed.
func (w *Writer) Close() (*Artifact, error) {
	art := &Artifact{Path: w.f.Name(), Columns: w.columns, Rows: w.rows}
	err := w.bw.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = art.Remove()
		return nil, fmt.Errorf("staging: close: %w", err)
	}
	return art, nil
}

// Abort closes and removes the partial file.
func (w *Writer) Abort() {
	_ = w.f.Close()
	_ = os.Remove(w.f.Name())
}

// Write stages all rows at once. It is a convenience over Create/Write/Close.
func Write(dir, table string, columns []string, rows [][]any) (*Artifact, error) {
	w, err := Create(dir, table, columns)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			w.Abort()
			return nil, err
		}
	}
	return w.Close()
}

// Reader decodes a staging file row by row. Values are strings, or nil for
// NULL.
type Reader struct {
	f       *os.File
	sc      *bufio.Scanner
	columns int
	line    int
}

// Open opens the artifact for reading.
func (a *Artifact) Open() (*Reader, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("staging: open: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 64<<20)
	return &Reader{f: f, sc: sc, columns: len(a.Columns)}, nil
}

// Next returns the next row or io.EOF.
func (r *Reader) Next() ([]any, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return nil, fmt.Errorf("staging: read: %w", err)
		}
		return nil, io.EOF
	}
	r.line++
	fields := bytes.Split(r.sc.Bytes(), []byte{'\t'})
	if len(fields) != r.columns {
		return nil, fmt.Errorf("staging: line %d has %d fields, want %d", r.line, len(fields), r.columns)
	}
	row := make([]any, len(fields))
	for i, f := range fields {
		if string(f) == Null {
			continue
		}
		row[i] = unescape(f)
	}
	return row, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// ReadAll decodes every row of the artifact.
func (a *Artifact) ReadAll() ([][]any, error) {
	r, err := a.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make([][]any, 0, a.Rows)
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
}

func appendEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

func unescape(b []byte) string {
	if bytes.IndexByte(b, '\\') < 0 {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != '\\' || i+1 == len(b) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch b[i] {
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		default:
			sb.WriteByte(b[i])
		}
	}
	return sb.String()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
