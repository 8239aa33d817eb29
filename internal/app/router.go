package app

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"studylab/internal/app/observability"
	"studylab/internal/auth"
	"studylab/internal/content"
	"studylab/internal/events"
	"studylab/internal/practice"
	"studylab/internal/profile"
	"studylab/internal/record"
	"studylab/internal/session"
)

// Deps are the process-wide resources the router wires together. DB is
// required; Cache and Events are optional and default to pass-through.
type Deps struct {
	DB       *sql.DB
	Cache    practice.ExperienceStore
	Events   events.Publisher
	Registry *session.Registry
	Log      *slog.Logger
}

func NewRouter(cfg Config, deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	contentStore := content.NewStore(deps.DB)
	recordStore := record.NewStore(deps.DB)

	var experience practice.ExperienceStore = profile.NewStore(deps.DB)
	if deps.Cache != nil {
		experience = deps.Cache
	}

	var publisher events.Publisher = events.NopPublisher{}
	if deps.Events != nil {
		publisher = deps.Events
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	collector := observability.NewCollector(deps.DB, deps.Registry.Len, log)
	createLimiter := NewIPRateLimiter(cfg.SessionRateLimitPerMin, time.Minute)

	sessionHandler := session.NewHandler(deps.Registry, session.Deps{
		Content:    contentStore,
		Records:    recordStore,
		Sink:       recordStore,
		Experience: experience,
		Events:     publisher,
		Log:        log,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(collector.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(secure chi.Router) {
			secure.Use(verifier.RequireLearner)

			secure.Get("/exams", sessionHandler.ListExams)
			secure.Get("/exams/{id}/results", sessionHandler.ListResults)

			secure.With(RateLimitMiddleware(createLimiter)).Post("/practice", sessionHandler.Create)
			secure.Route("/practice/{id}", func(sr chi.Router) {
				sr.Get("/", sessionHandler.Get)
				sr.Post("/begin", sessionHandler.Begin)
				sr.Post("/next", sessionHandler.Next)
				sr.Post("/prev", sessionHandler.Prev)
				sr.Post("/finish", sessionHandler.Finish)
				sr.Post("/reopen", sessionHandler.Reopen)
				sr.Put("/tab", sessionHandler.SetTab)
				sr.Put("/answer", sessionHandler.Answer)
				sr.Get("/review", sessionHandler.Review)
				sr.Put("/review/{questionID}/level", sessionHandler.SetLevel)
				sr.Post("/finalize", sessionHandler.Finalize)
			})
		})
	})

	return r
}
