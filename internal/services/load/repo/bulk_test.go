package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"birddb/internal/modkit/repokit"
	"birddb/internal/platform/testkit"
	"birddb/internal/services/load/domain"
)

type fakeTag struct{ n int64 }

func (f fakeTag) String() string      { return fmt.Sprintf("EXEC %d", f.n) }
func (f fakeTag) RowsAffected() int64 { return f.n }

type copied struct {
	table string
	cols  []string
	rows  [][]any
}

// fakeDB records SQL and COPY traffic; Tx runs fn against itself
type fakeDB struct {
	execs          []string
	copies         []copied
	insertAffected int64
	failTxAt       int // fail the Nth transaction, 0 never
	txCount        int

	rowStatus string // served by QueryRow.Scan
	rowErr    error
}

type fakeRow struct {
	status string
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if p, ok := dest[0].(*string); ok {
			*p = r.status
		}
	}
	return nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (repokit.CommandTag, error) {
	f.execs = append(f.execs, sql)
	switch {
	case strings.HasPrefix(strings.TrimSpace(sql), "INSERT"):
		return fakeTag{n: f.insertAffected}, nil
	case strings.HasPrefix(strings.TrimSpace(sql), "UPDATE"):
		return fakeTag{n: 1}, nil
	}
	return fakeTag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (repokit.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) repokit.Row {
	f.execs = append(f.execs, sql)
	return fakeRow{status: f.rowStatus, err: f.rowErr}
}

func (f *fakeDB) CopyFrom(_ context.Context, table string, cols []string, src repokit.CopySource) (int64, error) {
	c := copied{table: table, cols: cols}
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		c.rows = append(c.rows, vals)
	}
	f.copies = append(f.copies, c)
	return int64(len(c.rows)), nil
}

func (f *fakeDB) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	f.txCount++
	if f.failTxAt > 0 && f.txCount == f.failTxAt {
		return errors.New("induced tx failure")
	}
	return fn(f)
}

type stubSource struct {
	rows [][]string
	i    int
}

func (s *stubSource) Next() ([]string, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.i]
	s.i++
	return row, nil
}

func testSpec() domain.TableSpec {
	return domain.TableSpec{
		Name:      "perches",
		CreateSQL: "CREATE TABLE IF NOT EXISTS perches (id text primary key, height int)",
		Columns:   []string{"id", "height"},
		Types:     []string{"text", "int"},
		Keys:      []string{"id"},
	}
}

func TestStagingDDL(t *testing.T) {
	got := stagingDDL("staging_perches", []string{"id", "height"})
	want := "CREATE TEMP TABLE staging_perches (id text, height text) ON COMMIT DROP"
	if got != want {
		t.Fatalf("stagingDDL = %q, want %q", got, want)
	}
}

func TestInsertSQL_CastsAndConflict(t *testing.T) {
	got := insertSQL("staging_perches", testSpec())
	want := "INSERT INTO perches (id, height) SELECT id, height::int FROM staging_perches" +
		" ON CONFLICT (id) DO NOTHING"
	if got != want {
		t.Fatalf("insertSQL = %q, want %q", got, want)
	}
}

func TestInsertSQL_NoKeysPlainAppend(t *testing.T) {
	spec := testSpec()
	spec.Keys = nil
	got := insertSQL("staging_perches", spec)
	if strings.Contains(got, "ON CONFLICT") {
		t.Fatalf("keyless spec should not emit a conflict clause: %q", got)
	}
}

func TestLoader_ChunksAndCounts(t *testing.T) {
	db := &fakeDB{insertAffected: 2}
	l := NewLoader(db)

	src := &stubSource{rows: [][]string{
		{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", ""},
	}}
	res, err := l.Load(context.Background(), testSpec(), src, 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if res.Attempted != 5 || res.Committed != 5 {
		t.Fatalf("attempted/committed = %d/%d, want 5/5", res.Attempted, res.Committed)
	}
	if res.Chunks != 3 {
		t.Fatalf("chunks = %d, want 3", res.Chunks)
	}
	if res.Inserted != 6 { // fake reports 2 per chunk
		t.Fatalf("inserted = %d, want 6", res.Inserted)
	}
	if len(db.copies) != 3 {
		t.Fatalf("copies = %d, want 3", len(db.copies))
	}
	if db.copies[0].table != "staging_perches" {
		t.Fatalf("copy target = %q", db.copies[0].table)
	}

	// destination table created once, before any chunk
	if !strings.HasPrefix(strings.TrimSpace(db.execs[0]), "CREATE TABLE IF NOT EXISTS perches") {
		t.Fatalf("first exec should create the destination: %q", db.execs[0])
	}
}

func TestLoader_BlankFieldsCopyAsNull(t *testing.T) {
	db := &fakeDB{}
	l := NewLoader(db)

	src := &stubSource{rows: [][]string{{"a", ""}, {"b", "  "}}}
	if _, err := l.Load(context.Background(), testSpec(), src, 10); err != nil {
		t.Fatalf("Load: %v", err)
	}

	rows := db.copies[0].rows
	if rows[0][1] != nil {
		t.Fatalf("empty field should copy as NULL, got %v", rows[0][1])
	}
	if rows[1][1] != nil {
		t.Fatalf("whitespace field should copy as NULL, got %v", rows[1][1])
	}
	if rows[0][0] == nil {
		t.Fatalf("populated field should not be NULL")
	}
}

func TestLoader_ErrorKeepsCommittedCount(t *testing.T) {
	db := &fakeDB{failTxAt: 2}
	l := NewLoader(db)

	src := &stubSource{rows: [][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}}}
	res, err := l.Load(context.Background(), testSpec(), src, 2)
	if err == nil {
		t.Fatalf("expected chunk failure")
	}
	if res.Committed != 2 {
		t.Fatalf("committed = %d, want the 2 rows from the first chunk", res.Committed)
	}
	if res.Chunks != 1 {
		t.Fatalf("chunks = %d, want 1", res.Chunks)
	}
}

func TestLoader_RowWidthMismatch(t *testing.T) {
	l := NewLoader(&fakeDB{})
	src := &stubSource{rows: [][]string{{"only-one-field"}}}
	if _, err := l.Load(context.Background(), testSpec(), src, 10); err == nil {
		t.Fatalf("expected row width error")
	}
}

func TestLoader_SpecMismatch(t *testing.T) {
	l := NewLoader(&fakeDB{})
	spec := testSpec()
	spec.Types = spec.Types[:1]
	if _, err := l.Load(context.Background(), spec, &stubSource{}, 10); err == nil {
		t.Fatalf("expected columns/types mismatch error")
	}
}

func TestLoader_EmptySource(t *testing.T) {
	db := &fakeDB{}
	l := NewLoader(db)
	res, err := l.Load(context.Background(), testSpec(), &stubSource{}, 10)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Attempted != 0 || res.Chunks != 0 {
		t.Fatalf("empty source should load nothing, got %+v", res)
	}
	if len(db.copies) != 0 {
		t.Fatalf("no COPY expected for an empty source")
	}
}

func TestNewLoader_NilPanics(t *testing.T) {
	testkit.MustPanic(t, func() { NewLoader(nil) })
}
