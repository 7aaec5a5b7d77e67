package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	// ErrMissingColumn is returned when a CSV header lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrAlreadyLoaded is returned by Load when the target already holds
	// station or measurement rows.
	ErrAlreadyLoaded = errors.New("dataset already loaded")
)

// Counts reports how many rows Load inserted into each table.
type Counts struct {
	Stations     int
	Measurements int
}

type csvTable struct {
	name     string
	required []string
	insert   string
	row      func(get func(string) string) ([]any, error)
}

var stationTable = csvTable{
	name:     "station",
	required: []string{"station", "name", "latitude", "longitude", "elevation"},
	insert:   `INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`,
	row: func(get func(string) string) ([]any, error) {
		lat, err := parseFloat(get("latitude"), "latitude")
		if err != nil {
			return nil, err
		}
		lon, err := parseFloat(get("longitude"), "longitude")
		if err != nil {
			return nil, err
		}
		elev, err := parseFloat(get("elevation"), "elevation")
		if err != nil {
			return nil, err
		}
		id := get("station")
		if id == "" {
			return nil, errors.New("empty station")
		}
		return []any{id, get("name"), lat, lon, elev}, nil
	},
}

// An empty prcp is stored as NULL.
var measurementTable = csvTable{
	name:     "measurement",
	required: []string{"station", "date", "prcp", "tobs"},
	insert:   `INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`,
	row: func(get func(string) string) ([]any, error) {
		id := get("station")
		if id == "" {
			return nil, errors.New("empty station")
		}
		date := get("date")
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
		}
		var prcp any
		if s := get("prcp"); s != "" {
			v, err := parseFloat(s, "prcp")
			if err != nil {
				return nil, err
			}
			prcp = v
		}
		tobs, err := parseFloat(get("tobs"), "tobs")
		if err != nil {
			return nil, err
		}
		return []any{id, date, prcp, tobs}, nil
	},
}

// Load inserts the station and measurement CSV exports into an empty,
// migrated dataset. Columns may appear in any order. Both files go in one
// transaction: a bad row in either leaves both tables untouched, and a
// dataset that already has rows is refused with ErrAlreadyLoaded.
func Load(ctx context.Context, db *sql.DB, stations, measurements io.Reader) (Counts, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Counts{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var loaded bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM station) OR EXISTS (SELECT 1 FROM measurement)`).Scan(&loaded)
	if err != nil {
		return Counts{}, fmt.Errorf("check existing rows: %w", err)
	}
	if loaded {
		return Counts{}, ErrAlreadyLoaded
	}

	var c Counts
	if c.Stations, err = loadCSV(ctx, tx, stations, stationTable); err != nil {
		return Counts{}, fmt.Errorf("stations: %w", err)
	}
	if c.Measurements, err = loadCSV(ctx, tx, measurements, measurementTable); err != nil {
		return Counts{}, fmt.Errorf("measurements: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

func loadCSV(ctx context.Context, tx *sql.Tx, r io.Reader, t csvTable) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	index, err := columnIndex(headers, t.required)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, t.insert)
	if err != nil {
		return 0, fmt.Errorf("prepare %s insert: %w", t.name, err)
	}
	defer stmt.Close()

	n := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read CSV: %w", err)
		}
		get := func(col string) string { return strings.TrimSpace(record[index[col]]) }

		args, err := t.row(get)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			line, _ := reader.FieldPos(0)
			return 0, fmt.Errorf("line %d: insert: %w", line, err)
		}
		n++
	}
	return n, nil
}

func columnIndex(headers, required []string) (map[string]int, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[key] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return index, nil
}

func parseFloat(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}
