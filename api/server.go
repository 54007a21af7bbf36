/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging through the handler's logrus entry
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/reservations/{id}/*  Quotes, saves, ledger, refunds, guides
  /api/scenarios/*          Demo scenarios (standalone mode)
  /*                        Static files (frontend)

STATIC FILE SERVING:
  Serves a built frontend from web/dist/ when present, with index.html for
  unknown paths. Without one, / lists the API routes.

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. With no
// allowedOrigins the local frontend dev servers are allowed.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Reservation routes
		r.Route("/reservations/{id}", func(r chi.Router) {
			r.Get("/quote", h.GetQuote)
			r.Post("/quote", h.QuoteEdit)
			r.Post("/save", h.SaveReservation)
			r.Get("/ledger", h.GetLedger)
			r.Post("/refunds", h.CreateRefund)
			r.Get("/guides", h.ListGuides)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Frontend, when one has been built next to the binary
	if dir, ok := findStaticDir(); ok {
		r.Get("/*", spaHandler(dir))
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service": "tour-pricing",
				"routes": []string{
					"GET|POST /api/reservations/{id}/quote",
					"POST /api/reservations/{id}/save",
					"GET /api/reservations/{id}/ledger",
					"POST /api/reservations/{id}/refunds",
					"GET /api/reservations/{id}/guides",
					"GET /api/scenarios",
				},
			})
		})
	}

	return r
}

// findStaticDir looks for web/dist in the working directory, then beside
// the executable.
func findStaticDir() (string, bool) {
	candidates := []string{"./web/dist"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "web", "dist"))
	}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// spaHandler serves files from dir and index.html for unknown paths, so
// client-side routes resolve.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(filepath.Join(dir, filepath.Clean(r.URL.Path))); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	}
}
