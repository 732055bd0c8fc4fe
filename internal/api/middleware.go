package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupMiddleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// Request ID for tracing
		middleware.RequestID,

		middleware.Logger,
		middleware.Recoverer,

		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}),

		middleware.SetHeader("Content-Type", "application/json"),
	}
}

// ShortRequests bounds requests that only read state. Experiment runs are
// not wrapped: they may take minutes.
func ShortRequests() func(http.Handler) http.Handler {
	return middleware.Timeout(30 * time.Second)
}

// SerializeRuns lets one experiment run at a time and queues a few more;
// concurrent runs would contend on the same tables and skew each other.
func SerializeRuns() func(http.Handler) http.Handler {
	return middleware.ThrottleBacklog(1, 4, time.Hour)
}
