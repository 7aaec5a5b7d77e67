package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"climate-server/internal/db"

	_ "github.com/mattn/go-sqlite3"
)

// Schema of the published hawaii.sqlite dataset.
const testSchema = `
CREATE TABLE measurement (
  id      INTEGER PRIMARY KEY,
  station TEXT,
  date    TEXT,
  prcp    FLOAT,
  tobs    FLOAT
);
CREATE TABLE station (
  id        INTEGER PRIMARY KEY,
  station   TEXT,
  name      TEXT,
  latitude  FLOAT,
  longitude FLOAT,
  elevation FLOAT
);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// every pooled connection to :memory: is a fresh database
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Errorf("close db: %v", closeErr)
		}
	})
	if _, err := conn.Exec(testSchema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}
	return conn
}

func insertMeasurement(t *testing.T, conn *sql.DB, station, date string, prcp any, tobs float64) {
	t.Helper()
	_, err := conn.Exec(`INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`, station, date, prcp, tobs)
	if err != nil {
		t.Fatalf("insert measurement: %v", err)
	}
}

func insertStation(t *testing.T, conn *sql.DB, station, name string, lat, lon, elev float64) {
	t.Helper()
	_, err := conn.Exec(`INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`,
		station, name, lat, lon, elev)
	if err != nil {
		t.Fatalf("insert station: %v", err)
	}
}

func TestSchema_matchesDataset(t *testing.T) {
	conn := setupTestDB(t)
	if err := db.VerifySchema(context.Background(), conn, Schema); err != nil {
		t.Fatalf("VerifySchema(Schema) = %v", err)
	}
}

func TestAllPrecipitation_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	got, err := repo.AllPrecipitation(context.Background())
	if err != nil {
		t.Fatalf("AllPrecipitation: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("AllPrecipitation: got %v, want empty non-nil slice", got)
	}
}

func TestAllPrecipitation_OneRowPerMeasurement(t *testing.T) {
	conn := setupTestDB(t)
	insertMeasurement(t, conn, "USC1", "2017-08-23", 0.45, 81)
	insertMeasurement(t, conn, "USC2", "2017-08-23", 0.0, 82)
	insertMeasurement(t, conn, "USC1", "2017-08-22", nil, 80)
	repo := NewRepository(conn)

	got, err := repo.AllPrecipitation(context.Background())
	if err != nil {
		t.Fatalf("AllPrecipitation: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("AllPrecipitation: got %d rows, want 3", len(got))
	}
	if got[0].Date != "2017-08-23" || got[0].Prcp == nil || *got[0].Prcp != 0.45 {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].Prcp == nil || *got[1].Prcp != 0.0 {
		t.Errorf("row 1 = %+v", got[1])
	}
	if got[2].Prcp != nil {
		t.Errorf("row 2 prcp = %v, want nil", *got[2].Prcp)
	}
}

func TestAllStations(t *testing.T) {
	conn := setupTestDB(t)
	insertStation(t, conn, "USC00519397", "WAIKIKI 717.2, HI US", 21.2716, -157.8168, 3)
	insertStation(t, conn, "USC00513117", "KANEOHE 838.1, HI US", 21.4234, -157.8015, 14.6)
	repo := NewRepository(conn)

	got, err := repo.AllStations(context.Background())
	if err != nil {
		t.Fatalf("AllStations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("AllStations: got %d, want 2", len(got))
	}
	seen := map[string]bool{}
	for _, id := range got {
		if seen[id] {
			t.Errorf("duplicate station %q", id)
		}
		seen[id] = true
	}
	if !seen["USC00519397"] || !seen["USC00513117"] {
		t.Errorf("AllStations = %v", got)
	}
}

func TestAllStations_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	got, err := repo.AllStations(context.Background())
	if err != nil {
		t.Fatalf("AllStations: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("AllStations: got %v, want empty non-nil slice", got)
	}
}

func TestStationDetails(t *testing.T) {
	conn := setupTestDB(t)
	insertStation(t, conn, "USC00519397", "WAIKIKI 717.2, HI US", 21.2716, -157.8168, 3)
	insertStation(t, conn, "USC00513117", "KANEOHE 838.1, HI US", 21.4234, -157.8015, 14.6)
	repo := NewRepository(conn)

	got, err := repo.StationDetails(context.Background())
	if err != nil {
		t.Fatalf("StationDetails: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("StationDetails: got %d, want 2", len(got))
	}
	// ordered by station id
	if got[0].Station != "USC00513117" || got[0].Name != "KANEOHE 838.1, HI US" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Latitude != 21.2716 || got[1].Longitude != -157.8168 || got[1].Elevation != 3 {
		t.Errorf("second = %+v", got[1])
	}
}

func TestMostActiveStationReadings_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	got, err := repo.MostActiveStationReadings(context.Background())
	if err != nil {
		t.Fatalf("MostActiveStationReadings: %v", err)
	}
	if got.Station != "" || got.Cutoff != "" || len(got.Readings) != 0 {
		t.Fatalf("MostActiveStationReadings = %+v, want zero result", got)
	}
	if got.Readings == nil {
		t.Fatal("Readings is nil; want empty slice")
	}
}

func TestMostActiveStationReadings_SingleStationYear(t *testing.T) {
	conn := setupTestDB(t)
	// ten rows from 2016-08-22 to 2017-08-23; the first is one day outside the window
	dates := []string{
		"2016-08-22", "2016-08-23", "2016-10-01", "2016-12-25", "2017-01-01",
		"2017-03-15", "2017-05-05", "2017-07-04", "2017-08-01", "2017-08-23",
	}
	for i, d := range dates {
		insertMeasurement(t, conn, "USC00519281", d, 0.1, float64(70+i))
	}
	repo := NewRepository(conn)

	got, err := repo.MostActiveStationReadings(context.Background())
	if err != nil {
		t.Fatalf("MostActiveStationReadings: %v", err)
	}
	if got.Station != "USC00519281" {
		t.Errorf("Station = %q", got.Station)
	}
	if got.Cutoff != "2016-08-23" {
		t.Errorf("Cutoff = %q, want 2016-08-23", got.Cutoff)
	}
	if len(got.Readings) != 9 {
		t.Fatalf("got %d readings, want 9: %+v", len(got.Readings), got.Readings)
	}
	if got.Readings[0].Date != "2016-08-23" || got.Readings[0].Tobs != 71 {
		t.Errorf("first reading = %+v", got.Readings[0])
	}
	for _, r := range got.Readings {
		if r.Date < got.Cutoff {
			t.Errorf("reading %s before cutoff %s", r.Date, got.Cutoff)
		}
	}
}

func TestMostActiveStationReadings_PicksBusiestStation(t *testing.T) {
	conn := setupTestDB(t)
	for i := 0; i < 5; i++ {
		insertMeasurement(t, conn, "BUSY", fmt.Sprintf("2017-08-%02d", 10+i), nil, 75)
	}
	for i := 0; i < 2; i++ {
		insertMeasurement(t, conn, "QUIET", fmt.Sprintf("2017-08-%02d", 20+i), nil, 60)
	}
	// latest date across all stations belongs to QUIET
	insertMeasurement(t, conn, "QUIET", "2017-08-23", nil, 61)
	repo := NewRepository(conn)

	got, err := repo.MostActiveStationReadings(context.Background())
	if err != nil {
		t.Fatalf("MostActiveStationReadings: %v", err)
	}
	if got.Station != "BUSY" {
		t.Fatalf("Station = %q, want BUSY", got.Station)
	}
	if got.Cutoff != "2016-08-23" {
		t.Errorf("Cutoff = %q, want 2016-08-23", got.Cutoff)
	}
	if len(got.Readings) != 5 {
		t.Fatalf("got %d readings, want 5", len(got.Readings))
	}
	for _, r := range got.Readings {
		if r.Tobs != 75 {
			t.Errorf("reading from another station: %+v", r)
		}
	}
}

func TestMostActiveStationReadings_BadLatestDate(t *testing.T) {
	conn := setupTestDB(t)
	insertMeasurement(t, conn, "S", "23/08/2017", nil, 70)
	repo := NewRepository(conn)

	if _, err := repo.MostActiveStationReadings(context.Background()); err == nil {
		t.Fatal("MostActiveStationReadings with unparsable date = nil error; want error")
	}
}

// A measurement.date declared as DATE comes back from the driver as a
// time.Time unless the query casts it, which would break the date keys.
func TestRepository_DateTypedColumn(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	if _, err := conn.Exec(`CREATE TABLE measurement (id INTEGER PRIMARY KEY, station TEXT, date DATE, prcp FLOAT, tobs FLOAT)`); err != nil {
		t.Fatalf("create measurement: %v", err)
	}
	insertMeasurement(t, conn, "S", "2016-08-22", 0.1, 70)
	insertMeasurement(t, conn, "S", "2017-08-23", 0.2, 75)
	repo := NewRepository(conn)
	ctx := context.Background()

	prcp, err := repo.AllPrecipitation(ctx)
	if err != nil {
		t.Fatalf("AllPrecipitation() err = %v", err)
	}
	if len(prcp) != 2 || prcp[1].Date != "2017-08-23" {
		t.Errorf("AllPrecipitation() = %+v; want plain YYYY-MM-DD dates", prcp)
	}

	got, err := repo.MostActiveStationReadings(ctx)
	if err != nil {
		t.Fatalf("MostActiveStationReadings() err = %v", err)
	}
	if got.Cutoff != "2016-08-23" || len(got.Readings) != 1 || got.Readings[0].Date != "2017-08-23" {
		t.Errorf("MostActiveStationReadings() = %+v; want one reading on 2017-08-23", got)
	}

	stats, err := repo.TemperatureStats(ctx, "2017-01-01", ptr("2017-12-31"))
	if err != nil {
		t.Fatalf("TemperatureStats() err = %v", err)
	}
	if stats.Min == nil || *stats.Min != 75 || stats.Max == nil || *stats.Max != 75 {
		t.Errorf("TemperatureStats() = %+v; want 75 for the single 2017 row", stats)
	}
}

func seedStats(t *testing.T) *sql.DB {
	t.Helper()
	conn := setupTestDB(t)
	insertMeasurement(t, conn, "A", "2017-01-01", nil, 60)
	insertMeasurement(t, conn, "A", "2017-02-01", nil, 70)
	insertMeasurement(t, conn, "B", "2017-03-01", nil, 80)
	insertMeasurement(t, conn, "B", "2017-04-01", nil, 90)
	return conn
}

func ptr(s string) *string { return &s }

func TestTemperatureStats(t *testing.T) {
	repo := NewRepository(seedStats(t))

	tests := []struct {
		name          string
		start         string
		end           *string
		min, avg, max float64
	}{
		{name: "open ended", start: "2017-02-01", min: 70, avg: 80, max: 90},
		{name: "everything", start: "2000-01-01", min: 60, avg: 75, max: 90},
		{name: "inclusive range", start: "2017-01-01", end: ptr("2017-02-01"), min: 60, avg: 65, max: 70},
		{name: "single day", start: "2017-03-01", end: ptr("2017-03-01"), min: 80, avg: 80, max: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.TemperatureStats(context.Background(), tt.start, tt.end)
			if err != nil {
				t.Fatalf("TemperatureStats: %v", err)
			}
			if got.Min == nil || got.Avg == nil || got.Max == nil {
				t.Fatalf("TemperatureStats = %+v, want non-nil", got)
			}
			if *got.Min != tt.min || *got.Avg != tt.avg || *got.Max != tt.max {
				t.Errorf("got [%v %v %v], want [%v %v %v]", *got.Min, *got.Avg, *got.Max, tt.min, tt.avg, tt.max)
			}
			if !(*got.Min <= *got.Avg && *got.Avg <= *got.Max) {
				t.Errorf("ordering violated: %v %v %v", *got.Min, *got.Avg, *got.Max)
			}
		})
	}
}

func TestTemperatureStats_NoMatch(t *testing.T) {
	repo := NewRepository(seedStats(t))

	tests := []struct {
		name  string
		start string
		end   *string
	}{
		{name: "after last date", start: "2018-01-01"},
		{name: "end before start", start: "2017-04-01", end: ptr("2017-01-01")},
		{name: "malformed start", start: "not-a-date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.TemperatureStats(context.Background(), tt.start, tt.end)
			if err != nil {
				t.Fatalf("TemperatureStats: %v", err)
			}
			if got.Min != nil || got.Avg != nil || got.Max != nil {
				t.Errorf("TemperatureStats = %+v, want all nil", got)
			}
		})
	}
}

func TestRepository_ClosedDB(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = conn.Close()
	repo := NewRepository(conn)
	ctx := context.Background()

	if _, err := repo.AllPrecipitation(ctx); err == nil {
		t.Error("AllPrecipitation on closed db: want error")
	}
	if _, err := repo.AllStations(ctx); err == nil {
		t.Error("AllStations on closed db: want error")
	}
	if _, err := repo.MostActiveStationReadings(ctx); err == nil {
		t.Error("MostActiveStationReadings on closed db: want error")
	}
	if _, err := repo.TemperatureStats(ctx, "2017-01-01", nil); err == nil {
		t.Error("TemperatureStats on closed db: want error")
	}
}

func TestRepository_CanceledContext(t *testing.T) {
	repo := NewRepository(seedStats(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.AllPrecipitation(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AllPrecipitation(canceled) = %v; want context.Canceled", err)
	}
}

func TestCutoffDate(t *testing.T) {
	tests := []struct {
		latest string
		want   string
	}{
		{latest: "2017-08-23", want: "2016-08-23"},
		// 2016 is a leap year: 365 days back from 2016-12-31 is 2016-01-01
		{latest: "2016-12-31", want: "2016-01-01"},
		{latest: "2017-03-01", want: "2016-03-01"},
	}
	for _, tt := range tests {
		got, err := cutoffDate(tt.latest)
		if err != nil {
			t.Fatalf("cutoffDate(%q): %v", tt.latest, err)
		}
		if got != tt.want {
			t.Errorf("cutoffDate(%q) = %q, want %q", tt.latest, got, tt.want)
		}
		if _, err := time.Parse(DateLayout, got); err != nil {
			t.Errorf("cutoff %q not in storage layout", got)
		}
	}

	if _, err := cutoffDate("2017-8-23"); err == nil {
		t.Error("cutoffDate(bad) = nil error")
	}
}
