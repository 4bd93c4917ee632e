package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/drill-api/internal/api/middleware"
	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/service/mastery"
	"github.com/phrazzld/drill-api/internal/service/schedule"
)

// healthCheckTimeout bounds the database ping of GET /health.
const healthCheckTimeout = 2 * time.Second

// Pinger reports whether a backing dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps are the services the router exposes.
type RouterDeps struct {
	MasteryService  mastery.Service
	ScheduleService schedule.Service
	// DB is pinged by the health check. Nil skips the ping.
	DB     Pinger
	Logger *slog.Logger
}

// NewRouter builds the HTTP handler of the drill API.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	progressHandler := NewProgressHandler(deps.MasteryService, log)
	curriculumHandler := NewCurriculumHandler(deps.ScheduleService, log)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTraceMiddleware(log))
	r.Use(chimw.Recoverer)

	r.Route("/api/languages/{"+languageIDParam+"}", func(r chi.Router) {
		r.Get("/lessons", progressHandler.Overview)
		r.Put("/lessons", curriculumHandler.ReplaceCurriculum)
		r.Get("/schedule", curriculumHandler.GetSchedule)
		r.Delete("/progress", progressHandler.ResetLanguage)

		r.Route("/lessons/{"+lessonIDParam+"}", func(r chi.Router) {
			r.Get("/schedule", curriculumHandler.GetLessonSchedule)
			r.Get("/progress", progressHandler.GetProgress)
			r.Delete("/progress", progressHandler.ResetLesson)
			r.Post("/exposures", progressHandler.RecordExposure)
			r.Post("/complete", progressHandler.MarkCompleted)
		})
	})

	r.Get("/health", healthHandler(deps.DB))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// healthHandler reports "ok", or 503 when the database does not answer.
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
				return
			}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
