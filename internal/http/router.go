package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

// NewRouter assembles the public HTTP surface: the target API under /v1, the
// static file server over the storage root, and the health probe.
func NewRouter(cfg *infra.Config, app *handlers.App, countries geoip.CountryResolver, logger infra.Logger) http.Handler {
	var lookup middleware.CountryLookup
	if countries != nil {
		lookup = countries.CountryCode
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Logger(logger),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		middleware.I18N(cfg.DefaultLanguage, lookup),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(cfg.JWTSecret))

			r.Post("/stories", app.CreateStory)
			r.Post("/characters", app.CreateCharacter)

			r.Route("/targets/{id}", func(r chi.Router) {
				r.Get("/", app.GetTarget)
				r.Get("/events", app.TargetEvents)
				r.Get("/archive", app.DownloadArchive)
				r.Post("/assets/{type}/retry", app.RetryAsset)
			})
		})
	})

	if app.Store != nil {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Store.BasePath())))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
