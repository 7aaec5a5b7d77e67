package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/umahmood/haversine"

	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/types"
)

// ErrNoStations is returned by NearestStation when the station table is empty.
var ErrNoStations = errors.New("no stations in dataset")

type Service struct {
	repository repository.ClimateRepository
}

func NewService(repository repository.ClimateRepository) *Service {
	return &Service{repository: repository}
}

// NearestStation returns the station with the smallest great-circle distance
// to (lat, lon). Equal distances resolve to the lower station id.
func (s *Service) NearestStation(ctx context.Context, lat, lon float64) (types.NearestStation, error) {
	stations, err := s.repository.StationDetails(ctx)
	if err != nil {
		return types.NearestStation{}, fmt.Errorf("load stations: %w", err)
	}
	if len(stations) == 0 {
		return types.NearestStation{}, ErrNoStations
	}

	origin := haversine.Coord{Lat: lat, Lon: lon}
	var best types.NearestStation
	for i, st := range stations {
		_, km := haversine.Distance(origin, haversine.Coord{Lat: st.Latitude, Lon: st.Longitude})
		if i == 0 || km < best.DistanceKm || (km == best.DistanceKm && st.Station < best.Station.Station) {
			best = types.NearestStation{Station: st, DistanceKm: km}
		}
	}
	return best, nil
}
