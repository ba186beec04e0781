package repo

import (
	"context"
	"fmt"
	"io"
	"strings"

	"birddb/internal/modkit/repokit"
	perr "birddb/internal/platform/errors"
	"birddb/internal/platform/logger"
	pstrings "birddb/internal/platform/strings"
	"birddb/internal/services/load/domain"
)

// DefaultChunk is the per-transaction row count when the caller passes none
const DefaultChunk = 5000

// Loader implements domain.TableLoader over a pgx-backed TxRunner.
// Each chunk is one transaction: the rows are streamed into a
// transaction-scoped staging table over the COPY wire protocol, then moved
// into the destination with server-side casts and insert-if-absent semantics
type Loader struct {
	DB repokit.TxRunner
}

// NewLoader constructs a Loader
func NewLoader(db repokit.TxRunner) *Loader {
	if db == nil {
		panic("load.Loader requires a non nil TxRunner")
	}
	return &Loader{DB: db}
}

// Load drains src into spec.Name in chunks. On error the returned result
// still carries the rows durably committed by prior chunks
func (l *Loader) Load(
	ctx context.Context,
	spec domain.TableSpec,
	src domain.RowSource,
	chunk int,
) (domain.LoadResult, error) {
	var res domain.LoadResult
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	if len(spec.Columns) == 0 || len(spec.Columns) != len(spec.Types) {
		return res, perr.InvalidArgf("table spec %s: columns/types mismatch", spec.Name)
	}

	if spec.CreateSQL != "" {
		if _, err := l.DB.Exec(ctx, spec.CreateSQL); err != nil {
			return res, perr.FromPostgresf(err, "create table %s", spec.Name)
		}
	}

	staging := "staging_" + spec.Name
	createStaging := stagingDDL(staging, spec.Columns)
	insert := insertSQL(staging, spec)

	log := logger.C(ctx)
	buf := make([][]string, 0, chunk)
	eof := false

	for !eof {
		buf = buf[:0]
		for len(buf) < chunk {
			row, err := src.Next()
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				return res, err
			}
			if len(row) != len(spec.Columns) {
				return res, perr.Internalf("table %s: row width %d, want %d", spec.Name, len(row), len(spec.Columns))
			}
			buf = append(buf, row)
		}
		if len(buf) == 0 {
			break
		}

		rows := buf
		var inserted int64
		err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
			if _, err := q.Exec(ctx, createStaging); err != nil {
				return err
			}
			if _, err := q.CopyFrom(ctx, staging, spec.Columns, &copyRows{rows: rows}); err != nil {
				return err
			}
			tag, err := q.Exec(ctx, insert)
			if err != nil {
				return err
			}
			inserted = tag.RowsAffected()
			return nil
		})
		if err != nil {
			return res, perr.FromPostgresf(err,
				"load %s: chunk %d failed, %d rows committed in prior chunks",
				spec.Name, res.Chunks+1, res.Committed)
		}

		res.Attempted += int64(len(rows))
		res.Committed += int64(len(rows))
		res.Inserted += inserted
		res.Chunks++

		log.Debug().
			Str("table", spec.Name).
			Int("chunk", res.Chunks).
			Int64("inserted", res.Inserted).
			Int64("committed", res.Committed).
			Msg("load: chunk committed")
	}

	return res, nil
}

// stagingDDL builds the all-text transaction-scoped staging table
func stagingDDL(staging string, cols []string) string {
	var b strings.Builder
	b.WriteString("CREATE TEMP TABLE ")
	b.WriteString(staging)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" text")
	}
	b.WriteString(") ON COMMIT DROP")
	return b.String()
}

// insertSQL moves staged rows into the destination, casting each column to
// its destination type. Key conflicts resolve as insert-if-absent
func insertSQL(staging string, spec domain.TableSpec) string {
	exprs := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		if spec.Types[i] == "text" {
			exprs[i] = c
		} else {
			exprs[i] = fmt.Sprintf("%s::%s", c, spec.Types[i])
		}
	}
	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s",
		spec.Name,
		strings.Join(spec.Columns, ", "),
		strings.Join(exprs, ", "),
		staging,
	)
	if len(spec.Keys) > 0 {
		sql += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(spec.Keys, ", "))
	}
	return sql
}

// copyRows adapts a buffered chunk to the COPY source seam.
// Blank and whitespace-only fields become NULLs on the wire
type copyRows struct {
	rows [][]string
	i    int
}

func (c *copyRows) Next() bool { return c.i < len(c.rows) }

func (c *copyRows) Values() ([]any, error) {
	row := c.rows[c.i]
	c.i++
	vals := make([]any, len(row))
	for j, f := range row {
		vals[j] = pstrings.SQLNull(f)
	}
	return vals, nil
}

func (c *copyRows) Err() error { return nil }
