package controller

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
)

func parseCoordinates(r *http.Request) (lat float64, lon float64, err error) {
	q := r.URL.Query()

	latStr := strings.TrimSpace(q.Get("lat"))
	lonStr := strings.TrimSpace(q.Get("lon"))
	if latStr == "" || lonStr == "" {
		return 0, 0, errors.New("'lat' and 'lon' are required")
	}

	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil || math.IsNaN(lat) {
		return 0, 0, errors.New("invalid 'lat' (expected decimal degrees)")
	}
	if lat < -90 || lat > 90 {
		return 0, 0, errors.New("'lat' must be within [-90, 90]")
	}

	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil || math.IsNaN(lon) {
		return 0, 0, errors.New("invalid 'lon' (expected decimal degrees)")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, errors.New("'lon' must be within [-180, 180]")
	}

	return lat, lon, nil
}
