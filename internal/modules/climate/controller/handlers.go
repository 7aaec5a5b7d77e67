package controller

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"climate-server/internal/modules/climate/service"
	"climate-server/internal/modules/climate/views"
	"climate-server/internal/utils"
)

func (c *climateControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := &views.IndexData{Title: apiTitle, Routes: c.Routes()}
	utils.WriteHTML(w, http.StatusOK, func(out io.Writer) error {
		return views.RenderIndex(out, data)
	})
}

// handlePrecipitation collapses rows into one entry per date. When several
// stations report the same date the row read last wins.
func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	rows, err := c.repository.AllPrecipitation(r.Context())
	if err != nil {
		slog.Error("precipitation: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load precipitation")
		return
	}
	byDate := make(map[string]*float64, len(rows))
	for _, p := range rows {
		byDate[p.Date] = p.Prcp
	}
	utils.WriteJSON(w, http.StatusOK, byDate)
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := c.repository.AllStations(r.Context())
	if err != nil {
		slog.Error("stations: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
		return
	}
	if stations == nil {
		stations = []string{}
	}
	utils.WriteJSON(w, http.StatusOK, stations)
}

func (c *climateControllerImpl) handleNearestStation(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	nearest, err := c.service.NearestStation(r.Context(), lat, lon)
	if errors.Is(err, service.ErrNoStations) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("nearest station: lookup failed", "lat", lat, "lon", lon, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
		return
	}
	utils.WriteJSON(w, http.StatusOK, nearest)
}

// handleTobs returns the most active station's last year of readings as one
// flat list: date, tobs, date, tobs, ...
func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	res, err := c.repository.MostActiveStationReadings(r.Context())
	if err != nil {
		slog.Error("tobs: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load temperature observations")
		return
	}
	slog.Debug("tobs: most active station", "station", res.Station, "cutoff", res.Cutoff, "readings", len(res.Readings))

	flat := make([]any, 0, 2*len(res.Readings))
	for _, rd := range res.Readings {
		flat = append(flat, rd.Date, rd.Tobs)
	}
	utils.WriteJSON(w, http.StatusOK, flat)
}

func (c *climateControllerImpl) handleStatsFrom(w http.ResponseWriter, r *http.Request) {
	c.writeStats(w, r, r.PathValue("start"), nil)
}

func (c *climateControllerImpl) handleStatsRange(w http.ResponseWriter, r *http.Request) {
	end := r.PathValue("end")
	c.writeStats(w, r, r.PathValue("start"), &end)
}

// writeStats answers [min, avg, max]. Dates are passed to the query as given;
// malformed input simply matches nothing and yields [null, null, null].
func (c *climateControllerImpl) writeStats(w http.ResponseWriter, r *http.Request, start string, end *string) {
	stats, err := c.repository.TemperatureStats(r.Context(), start, end)
	if err != nil {
		attrs := []any{"start", start, "error", err}
		if end != nil {
			attrs = append(attrs, "end", *end)
		}
		slog.Error("temperature stats: query failed", attrs...)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load temperature stats")
		return
	}
	utils.WriteJSON(w, http.StatusOK, []*float64{stats.Min, stats.Avg, stats.Max})
}
