package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"climate-server/internal/db"
	"climate-server/internal/modules/climate/types"
)

//go:embed sql/get-precipitation.sql
var getPrecipitationSQL string

//go:embed sql/get-station-ids.sql
var getStationIDsSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-most-active-station.sql
var getMostActiveStationSQL string

//go:embed sql/get-latest-date.sql
var getLatestDateSQL string

//go:embed sql/get-station-tobs-since.sql
var getStationTobsSinceSQL string

//go:embed sql/get-tobs-stats-from.sql
var getTobsStatsFromSQL string

//go:embed sql/get-tobs-stats-range.sql
var getTobsStatsRangeSQL string

// DateLayout is the storage format of measurement.date.
const DateLayout = "2006-01-02"

// lookbackDays is the window of the most-active-station query, counted back
// from the latest date in the dataset.
const lookbackDays = 365

// Schema lists the tables and columns the queries in this package read.
var Schema = []db.Table{
	{Name: "measurement", Columns: []string{"station", "date", "prcp", "tobs"}},
	{Name: "station", Columns: []string{"station", "name", "latitude", "longitude", "elevation"}},
}

type ClimateRepository interface {
	AllPrecipitation(ctx context.Context) ([]types.Precipitation, error)
	AllStations(ctx context.Context) ([]string, error)
	StationDetails(ctx context.Context) ([]types.Station, error)
	MostActiveStationReadings(ctx context.Context) (types.ActiveStationReadings, error)
	TemperatureStats(ctx context.Context, start string, end *string) (types.TemperatureStats, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ClimateRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) AllPrecipitation(ctx context.Context) ([]types.Precipitation, error) {
	rows, err := r.db.QueryContext(ctx, getPrecipitationSQL)
	if err != nil {
		return nil, fmt.Errorf("query precipitation: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close precipitation rows", "error", err)
		}
	}()
	out := []types.Precipitation{}
	for rows.Next() {
		var (
			p    types.Precipitation
			prcp sql.NullFloat64
		)
		if err := rows.Scan(&p.Date, &prcp); err != nil {
			return nil, err
		}
		if prcp.Valid {
			p.Prcp = &prcp.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) AllStations(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, getStationIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) StationDetails(ctx context.Context) ([]types.Station, error) {
	rows, err := r.db.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query station details: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close station details rows", "error", err)
		}
	}()
	out := []types.Station{}
	for rows.Next() {
		var s types.Station
		if err := rows.Scan(&s.Station, &s.Name, &s.Latitude, &s.Longitude, &s.Elevation); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) MostActiveStationReadings(ctx context.Context) (types.ActiveStationReadings, error) {
	res := types.ActiveStationReadings{Readings: []types.TemperatureReading{}}

	err := r.db.QueryRowContext(ctx, getMostActiveStationSQL).Scan(&res.Station)
	if errors.Is(err, sql.ErrNoRows) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("query most active station: %w", err)
	}

	var latest sql.NullString
	if err := r.db.QueryRowContext(ctx, getLatestDateSQL).Scan(&latest); err != nil {
		return res, fmt.Errorf("query latest date: %w", err)
	}
	if !latest.Valid {
		return res, nil
	}
	cutoff, err := cutoffDate(latest.String)
	if err != nil {
		return res, err
	}
	res.Cutoff = cutoff

	rows, err := r.db.QueryContext(ctx, getStationTobsSinceSQL, res.Station, cutoff)
	if err != nil {
		return res, fmt.Errorf("query tobs for %s: %w", res.Station, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close tobs rows", "error", err)
		}
	}()
	for rows.Next() {
		var rec types.TemperatureReading
		if err := rows.Scan(&rec.Date, &rec.Tobs); err != nil {
			return res, err
		}
		res.Readings = append(res.Readings, rec)
	}
	return res, rows.Err()
}

func (r *repositoryImpl) TemperatureStats(ctx context.Context, start string, end *string) (types.TemperatureStats, error) {
	var row *sql.Row
	if end == nil {
		row = r.db.QueryRowContext(ctx, getTobsStatsFromSQL, start)
	} else {
		row = r.db.QueryRowContext(ctx, getTobsStatsRangeSQL, start, *end)
	}

	var lo, mean, hi sql.NullFloat64
	if err := row.Scan(&lo, &mean, &hi); err != nil {
		return types.TemperatureStats{}, fmt.Errorf("query temperature stats: %w", err)
	}
	return types.TemperatureStats{
		Min: nullableFloat(lo),
		Avg: nullableFloat(mean),
		Max: nullableFloat(hi),
	}, nil
}

// cutoffDate returns latest minus the lookback window, as a storage-format date.
func cutoffDate(latest string) (string, error) {
	t, err := time.Parse(DateLayout, latest)
	if err != nil {
		return "", fmt.Errorf("parse latest date %q: %w", latest, err)
	}
	return t.AddDate(0, 0, -lookbackDays).Format(DateLayout), nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
