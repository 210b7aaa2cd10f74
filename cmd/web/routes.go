package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() *http.ServeMux {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.recoverPanic(app.logAndTraceRequest(secureHeaders(noCache(app.timeout(next)))))
		}
		user = func(next http.HandlerFunc) http.Handler {
			return shared(app.withUser(next))
		}
	)

	mux.Handle("POST /api/users/{userID}/readiness", user(app.readinessPOST))
	mux.Handle("GET /api/users/{userID}/readiness/today", user(app.readinessTodayGET))
	mux.Handle("GET /api/users/{userID}/readiness/average", user(app.readinessAverageGET))
	mux.Handle("GET /api/users/{userID}/readiness/history", user(app.readinessHistoryGET))
	mux.Handle("POST /api/users/{userID}/personalize", user(app.personalizePOST))
	mux.Handle("POST /api/users/{userID}/sessions", user(app.sessionPOST))
	mux.Handle("GET /api/users/{userID}/progression", user(app.progressionGET))

	mux.Handle("GET /api/healthy", shared(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/test/timeout", shared(http.HandlerFunc(app.testTimeout)))

	if app.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{ //nolint:exhaustruct // defaults.
			Registry: app.registry,
		}))
	}

	mux.Handle("/", shared(http.HandlerFunc(app.notFound)))

	return mux
}
