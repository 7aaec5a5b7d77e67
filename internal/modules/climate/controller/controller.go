package controller

import (
	"net/http"

	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/service"
)

const apiTitle = "Climate API"

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
	// Routes returns the public route listing shown on the index page.
	Routes() []string
}

type climateControllerImpl struct {
	repository repository.ClimateRepository
	service    *service.Service
	routes     []route
}

// route is one row of the router table. listing is the human readable path
// shown on the index page; empty means the route is not advertised.
type route struct {
	pattern string
	listing string
	handler http.HandlerFunc
}

func NewClimateController(repository repository.ClimateRepository, service *service.Service) ClimateController {
	c := &climateControllerImpl{repository: repository, service: service}
	c.routes = []route{
		{pattern: "GET /{$}", handler: c.handleIndex},
		{pattern: "GET /api/v1.0/precipitation", listing: "/api/v1.0/precipitation", handler: c.handlePrecipitation},
		{pattern: "GET /api/v1.0/stations", listing: "/api/v1.0/stations", handler: c.handleStations},
		{pattern: "GET /api/v1.0/stations/nearest", listing: "/api/v1.0/stations/nearest?lat=<lat>&lon=<lon>", handler: c.handleNearestStation},
		{pattern: "GET /api/v1.0/tobs", listing: "/api/v1.0/tobs", handler: c.handleTobs},
		{pattern: "GET /api/v1.0/{start}", listing: "/api/v1.0/<start>", handler: c.handleStatsFrom},
		{pattern: "GET /api/v1.0/{start}/{end}", listing: "/api/v1.0/<start>/<end>", handler: c.handleStatsRange},
	}
	return c
}

func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	for _, rt := range c.routes {
		mux.HandleFunc(rt.pattern, rt.handler)
	}
}

func (c *climateControllerImpl) Routes() []string {
	out := make([]string, 0, len(c.routes))
	for _, rt := range c.routes {
		if rt.listing != "" {
			out = append(out, rt.listing)
		}
	}
	return out
}
