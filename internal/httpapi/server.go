package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"climate-server/internal/config"
)

const readHeaderTimeout = 5 * time.Second

// NewServer wraps mux in the middleware chain. The request logger sits
// outside Recoverer so recovered panics are logged with their 500 status.
func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(cfg, mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func NewHandler(cfg config.Config, mux *http.ServeMux) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})
	return chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
		c.Handler,
	).Handler(mux)
}
