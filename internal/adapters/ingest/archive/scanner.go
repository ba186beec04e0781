package archive

import (
	"bufio"
	"io"
	"strings"

	perr "birddb/internal/platform/errors"
)

const (
	maxScanTokenSize = 16 * 1024 * 1024
	scanBufSize      = 512 * 1024
)

// Header maps tab-delimited column names to field positions
type Header struct {
	cols []string
	idx  map[string]int
}

// Columns returns the header column names in file order
func (h *Header) Columns() []string { return h.cols }

// Index returns the field position for a column name, ok=false when absent
func (h *Header) Index(name string) (int, bool) {
	i, ok := h.idx[name]
	return i, ok
}

// Row is a single parsed data line sharing its file's header
type Row struct {
	h      *Header
	fields []string
}

// Get returns the value for a column, "" when the column is absent or the row
// is shorter than the header (trailing optional columns)
func (r Row) Get(name string) string {
	i, ok := r.h.idx[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Scanner streams Rows from a tab-delimited member with a leading header line
type Scanner struct {
	sc      *bufio.Scanner
	header  *Header
	err     error
	rows    int
	skipped int
	bytes   int64
}

// NewScanner reads the header line and validates that every required column is
// present. Unknown columns are ignored for forward compatibility
func NewScanner(r io.Reader, required ...string) (*Scanner, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, scanBufSize), maxScanTokenSize)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "read header")
		}
		return nil, perr.New(perr.ErrorCodeValidation, "empty member: no header line")
	}
	line := strings.TrimSuffix(sc.Text(), "\r")
	cols := strings.Split(line, "\t")
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[strings.TrimSpace(c)] = i
	}

	var missing []string
	for _, want := range required {
		if _, ok := idx[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, perr.Newf(perr.ErrorCodeValidation,
			"header missing required columns: %s", strings.Join(missing, ", "))
	}

	out := &Scanner{sc: sc, header: &Header{cols: cols, idx: idx}}
	out.bytes = int64(len(line) + 1)
	return out, nil
}

// Header returns the parsed header
func (s *Scanner) Header() *Header { return s.header }

// Next returns the next data row; io.EOF when the stream is exhausted.
// Rows with fewer fields than the header are skipped and counted, not fatal
func (s *Scanner) Next() (Row, error) {
	if s.err != nil {
		return Row{}, s.err
	}
	for {
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				s.err = err
				return Row{}, err
			}
			s.err = io.EOF
			return Row{}, io.EOF
		}
		line := strings.TrimSuffix(s.sc.Text(), "\r")
		s.bytes += int64(len(line) + 1)
		fields := strings.Split(line, "\t")
		if len(fields) < len(s.header.cols) {
			s.skipped++
			continue
		}
		s.rows++
		return Row{h: s.header, fields: fields}, nil
	}
}

// Stats returns rows yielded, short rows skipped, and bytes consumed so far
func (s *Scanner) Stats() (rows, skipped int, bytes int64) {
	return s.rows, s.skipped, s.bytes
}
