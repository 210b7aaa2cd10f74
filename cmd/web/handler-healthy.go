package main

import (
	"net/http"
	"time"
)

type healthyResponse struct {
	Status string `json:"status"`
}

// healthy responds with a JSON object indicating that the server is healthy.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, healthyResponse{Status: "ok"})
}

type testTimeoutResponse struct {
	Status  string `json:"status"`
	SleptMS int    `json:"slept_ms"`
}

// testTimeout sleeps for the sleep_ms query parameter so that the timeout middleware can be exercised.
func (app *application) testTimeout(w http.ResponseWriter, r *http.Request) {
	sleepMS, err := parseIntQuery(r, "sleep_ms", 0)
	if err != nil || sleepMS < 0 {
		app.errorResponse(w, r, http.StatusBadRequest, "invalid sleep_ms parameter")
		return
	}

	if sleepMS > 0 {
		time.Sleep(time.Duration(sleepMS) * time.Millisecond)
	}

	app.writeJSON(w, r, http.StatusOK, testTimeoutResponse{Status: "completed", SleptMS: sleepMS})
}
