// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrTable is returned for table names that are no plain identifiers.
var ErrTable = errors.New("source: invalid table name")

var identRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OpenSQLite opens the SQLite database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	return db, nil
}

// columns returns "k0, k1, ..., value" for dims dimensions.
func columns(dims int) string {
	cols := make([]string, 0, dims+1)
	for d := range dims {
		cols = append(cols, fmt.Sprintf("k%d", d))
	}
	cols = append(cols, "value")
	return strings.Join(cols, ", ")
}

// CreateTable creates the point table with the columns k0..k{dims-1}
// and value if it does not exist.
func CreateTable(ctx context.Context, db *sql.DB, table string, dims int) error {
	if !identRx.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrTable, table)
	}

	cols := make([]string, 0, dims+1)
	for d := range dims {
		cols = append(cols, fmt.Sprintf("k%d INTEGER NOT NULL", d))
	}
	cols = append(cols, "value INTEGER NOT NULL")

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	_, err := db.ExecContext(ctx, stmt)
	return err
}

// WriteSQLite inserts the points into table in one transaction.
//
// SQLite integers are signed, the keys are stored as their
// two's complement int64 and restored by ReadSQLite.
func WriteSQLite(ctx context.Context, db *sql.DB, table string, dims int, pts []Point) error {
	if err := CreateTable(ctx, db, table, dims); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	marks := strings.TrimSuffix(strings.Repeat("?, ", dims+1), ", ")
	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columns(dims), marks))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, dims+1)
	for i, p := range pts {
		if len(p.Key) != dims {
			return fmt.Errorf("%w: point %d has %d, want %d", ErrDims, i, len(p.Key), dims)
		}
		for d, k := range p.Key {
			args[d] = int64(k)
		}
		args[dims] = p.Value

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("source: insert point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ReadSQLite reads all points of table, the key columns are k0..k{dims-1}.
func ReadSQLite(ctx context.Context, db *sql.DB, table string, dims int) ([]Point, error) {
	if !identRx.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrTable, table)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return nil, fmt.Errorf("source: count %s: %w", table, err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", columns(dims), table))
	if err != nil {
		return nil, fmt.Errorf("source: query %s: %w", table, err)
	}
	defer rows.Close()

	pts := make([]Point, 0, count)

	raw := make([]int64, dims+1)
	dest := make([]any, dims+1)
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("source: scan %s: %w", table, err)
		}

		key := make([]uint64, dims)
		for d := range key {
			key[d] = uint64(raw[d])
		}
		pts = append(pts, Point{Key: key, Value: raw[dims]})
	}

	return pts, rows.Err()
}
