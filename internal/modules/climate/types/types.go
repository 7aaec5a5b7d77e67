package types

// Station is one row of the station table.
type Station struct {
	Station   string  `json:"station"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// Precipitation is the (date, prcp) projection of a measurement row. Prcp is
// nil where the reading is missing.
type Precipitation struct {
	Date string
	Prcp *float64
}

// TemperatureReading is the (date, tobs) projection of a measurement row.
type TemperatureReading struct {
	Date string
	Tobs float64
}

// ActiveStationReadings holds the last year of readings for the station with
// the most measurement rows. Station and Cutoff are empty when the dataset has
// no measurements.
type ActiveStationReadings struct {
	Station  string
	Cutoff   string
	Readings []TemperatureReading
}

// TemperatureStats is the min/avg/max of tobs over a date range. All three
// are nil when no row matched.
type TemperatureStats struct {
	Min *float64
	Avg *float64
	Max *float64
}

type NearestStation struct {
	Station
	DistanceKm float64 `json:"distance_km"`
}
